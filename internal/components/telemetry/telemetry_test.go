package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecorder()
	tel := NewScopedAPI("monitor", rec)

	tel.ReportBroken("monitor.check-game", "te26")
	tel.ReportWarning("store.get")
	tel.ReportCount("games", 3)

	broken := rec.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "monitor: monitor.check-game", broken[0].ID)
	require.Equal(t, []any{"te26"}, broken[0].Params)

	require.Len(t, rec.Reports("warning"), 1)
	require.Equal(t, []any{int64(3)}, rec.Reports("count")[0].Params)
	require.Len(t, rec.Reports(""), 3)
}

func TestKVString(t *testing.T) {
	require.Equal(t, "turn=81", KV{Key: "turn", Value: 81}.String())
}

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), "test:telemetry", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.Nil(t, tel.MetricsHandler)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupPrometheus(t *testing.T) {
	tel, err := Setup(context.Background(), "test:telemetry", Config{Prometheus: true})
	require.NoError(t, err)
	require.NotNil(t, tel.MeterProvider)
	require.NotNil(t, tel.MetricsHandler)
	require.NoError(t, tel.Shutdown(context.Background()))
}
