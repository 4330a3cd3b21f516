package message

import (
	"encoding/json"
	"fmt"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

type MessageParser struct {
	logger *logger.Logger
}

func NewMessageParser(logger *logger.Logger) *MessageParser {
	return &MessageParser{
		logger: logger,
	}
}

func (p *MessageParser) ParseAlert(messageBytes []byte) (*models.Alert, error) {
	var alert models.Alert
	if err := json.Unmarshal(messageBytes, &alert); err != nil {
		return nil, fmt.Errorf("failed to decode alert: %w", err)
	}
	if alert.Kind == "" || alert.TenantID == 0 {
		return nil, fmt.Errorf("alert is missing evento or id_local")
	}
	return &alert, nil
}
