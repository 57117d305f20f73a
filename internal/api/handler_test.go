package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/connector"
	"github.com/adflow-systems/showads-connector/internal/customer"
	"github.com/adflow-systems/showads-connector/internal/journal"
)

// --- mocks ---

type mockStats struct {
	stats connector.Stats
}

func (m *mockStats) Snapshot() connector.Stats { return m.stats }

type mockJournal struct {
	healthErr error
}

func (m *mockJournal) FilterNew(ctx context.Context, customers []customer.Customer) ([]customer.Customer, error) {
	return customers, nil
}
func (m *mockJournal) MarkDelivered(context.Context, []customer.Customer) error { return nil }
func (m *mockJournal) RecordBatch(context.Context, journal.BatchRecord) error   { return nil }
func (m *mockJournal) HealthCheck(context.Context) error                        { return m.healthErr }
func (m *mockJournal) Close() error                                             { return nil }

func newTestApp(stats StatsSource, jrnl journal.Journal) *fiber.App {
	app := fiber.New()
	handler := NewStatusHandler(zap.NewNop(), stats)
	RegisterRoutes(app, nil, jrnl, handler)
	return app
}

// --- tests ---

func TestStatus(t *testing.T) {
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	stats := &mockStats{stats: connector.Stats{
		Batches:      4,
		RecordsSent:  3500,
		Deduped:      120,
		LastRunStart: &start,
	}}

	app := newTestApp(stats, &mockJournal{})

	req, _ := http.NewRequest(http.MethodGet, "/status", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result connector.Stats
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &result))

	assert.Equal(t, int64(4), result.Batches)
	assert.Equal(t, int64(3500), result.RecordsSent)
	assert.Equal(t, int64(120), result.Deduped)
	require.NotNil(t, result.LastRunStart)
	assert.True(t, start.Equal(*result.LastRunStart))
}

func TestHealth_OK(t *testing.T) {
	app := newTestApp(&mockStats{}, &mockJournal{})

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]any
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "ok", result["status"])
}

func TestHealth_DegradedOnJournalFailure(t *testing.T) {
	app := newTestApp(&mockStats{}, &mockJournal{healthErr: errors.New("redis: connection refused")})

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var result struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "degraded", result.Status)
	assert.Contains(t, result.Checks["journal"], "connection refused")
}
