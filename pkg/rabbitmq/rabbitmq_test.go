package rabbitmq

import "testing"

func TestRoutingKey(t *testing.T) {
	cases := []struct {
		tenant int64
		event  string
		want   string
	}{
		{7, "alerta_pedido", "tenant.7.alerta_pedido"},
		{7, "", "tenant.7.*"},
		{0, "nuevo_pedido", "tenant.*.nuevo_pedido"},
		{0, "", "tenant.*.*"},
	}
	for _, tc := range cases {
		if got := RoutingKey(tc.tenant, tc.event); got != tc.want {
			t.Errorf("RoutingKey(%d, %q) = %q, want %q", tc.tenant, tc.event, got, tc.want)
		}
	}
}
