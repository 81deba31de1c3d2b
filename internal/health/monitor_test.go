package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, hs *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestMonitor_CheckOnce(t *testing.T) {
	hs := health.NewServer()
	m := NewMonitor(hs, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	upstreamErr := errors.New("connection refused")
	m.Add(ServiceDatabase, func(context.Context) error { return nil })
	m.Add(ServiceExtraction, func(context.Context) error { return upstreamErr })

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ServiceDatabase))

	assert.False(t, m.CheckOnce(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ServiceDatabase))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ServiceExtraction))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ""))

	upstreamErr = nil
	assert.True(t, m.CheckOnce(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ServiceExtraction))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ""))
}

func TestMonitor_RunStopsWithContext(t *testing.T) {
	hs := health.NewServer()
	m := NewMonitor(hs, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Add(ServiceDatabase, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Run(ctx)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ""))
}

func TestNewServer(t *testing.T) {
	srv, hs := NewServer()
	require.NotNil(t, srv)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ""))
	srv.Stop()
}
