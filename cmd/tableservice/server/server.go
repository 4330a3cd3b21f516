package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mesa-qr/internal/alerts"
	"mesa-qr/internal/clock"
	"mesa-qr/internal/codegen"
	"mesa-qr/internal/core"
	"mesa-qr/internal/orders"
	"mesa-qr/internal/session"
	"mesa-qr/internal/storage/memory"
	"mesa-qr/internal/storage/postgres"
	"mesa-qr/internal/tableservice/handler"
	"mesa-qr/internal/tableservice/live"
	"mesa-qr/internal/tableservice/message"
	"mesa-qr/internal/verifier"
	"mesa-qr/pkg/config"
	"mesa-qr/pkg/db"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
	"mesa-qr/pkg/rabbitmq"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	port       int
	config     *config.Config
	logger     *logger.Logger
	httpServer *http.Server
	dbPool     *pgxpool.Pool
	rabbitMQ   *rabbitmq.RabbitMQ
	supervisor *verifier.Supervisor
}

func NewServer(port int, cfg *config.Config, log *logger.Logger) *Server {
	return &Server{
		port:   port,
		config: cfg,
		logger: log,
	}
}

// Run wires the engine and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	repo, err := s.repository()
	if err != nil {
		return err
	}

	hub := live.NewHub(s.logger)
	sinks := alerts.Fanout{alerts.NewLogSink(s.logger), hub}

	if s.config.RabbitMQ.Enabled {
		rm, err := rabbitmq.ConnectRabbitMQ(&s.config.RabbitMQ, s.logger)
		if err != nil {
			s.closeResources()
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		s.rabbitMQ = rm
		sinks = append(sinks, message.NewAlertPublisher(rm, s.logger))
	}

	clk := clock.System{}
	sessions := session.NewManager(repo, clk, codegen.New(), sinks, s.logger, session.Params{
		OrderTTL:         s.config.Sessions.OrderTTL,
		ReservationGrace: s.config.Sessions.ReservationGrace,
	})
	sm := orders.NewStateMachine(repo, clk, sinks, sessions, s.logger, orders.Params{
		ServeGrace: s.config.Sessions.ServeGrace,
	})
	dedup := alerts.NewDeduplicator(s.config.Verifier.Suppression, s.config.Verifier.Retention)
	v := verifier.New(repo, sm, sessions, dedup, clk, sinks, s.logger, verifier.Params{
		KanbanAfter:       s.config.Verifier.KanbanAfter,
		TerminadoWarn:     core.TerminadoWarnAfter,
		TerminadoCritical: core.TerminadoCriticalAfter,
	})
	s.supervisor = verifier.NewSupervisor(v, s.config.Verifier.Interval, s.logger)

	tableHandler := handler.NewTableHandler(sessions, sm, hub, s.supervisor, s.logger)
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     tableHandler.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("startup", "server_started", fmt.Sprintf("Table Service started on port %d", s.port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) repository() (core.Repository, error) {
	switch s.config.Storage.Driver {
	case "memory":
		store := memory.New()
		for i := 1; i <= s.config.Storage.SeedTables; i++ {
			store.AddTable(models.Table{
				TenantID: s.config.Storage.SeedTenant,
				Name:     fmt.Sprintf("Mesa %d", i),
				Capacity: 4,
			})
		}
		s.logger.Info("startup", "storage_memory",
			fmt.Sprintf("Using in-memory storage with %d tables", s.config.Storage.SeedTables))
		return store, nil
	default:
		pool, err := db.ConnectDB(&s.config.Database, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.dbPool = pool
		return postgres.NewRepository(pool, s.logger), nil
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.supervisor != nil {
		errs = append(errs, s.supervisor.Shutdown(ctx))
	}
	s.closeResources()
	return errors.Join(errs...)
}

func (s *Server) closeResources() {
	if s.rabbitMQ != nil {
		s.rabbitMQ.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
