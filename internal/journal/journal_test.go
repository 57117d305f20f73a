package journal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/customer"
)

func newTestJournal(t *testing.T, ttl time.Duration) (*hybridJournal, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &hybridJournal{redis: rdb, ttl: ttl, logger: zap.NewNop()}, mr
}

func someCustomers(n int) []customer.Customer {
	out := make([]customer.Customer, n)
	for i := range out {
		out[i] = customer.Customer{Name: "John Doe", Age: 30, Cookie: uuid.NewString(), BannerID: i}
	}
	return out
}

func TestFilterNew_PassesUnknownCookies(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t, time.Hour)

	customers := someCustomers(3)
	fresh, err := j.FilterNew(ctx, customers)
	require.NoError(t, err)
	assert.Equal(t, customers, fresh)
}

func TestFilterNew_DropsDeliveredCookies(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t, time.Hour)

	customers := someCustomers(4)
	require.NoError(t, j.MarkDelivered(ctx, customers[:2]))

	fresh, err := j.FilterNew(ctx, customers)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, customers[2].Cookie, fresh[0].Cookie)
	assert.Equal(t, customers[3].Cookie, fresh[1].Cookie)
}

func TestFilterNew_DedupExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	j, mr := newTestJournal(t, time.Minute)

	customers := someCustomers(1)
	require.NoError(t, j.MarkDelivered(ctx, customers))

	fresh, err := j.FilterNew(ctx, customers)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	mr.FastForward(2 * time.Minute)

	fresh, err = j.FilterNew(ctx, customers)
	require.NoError(t, err)
	assert.Len(t, fresh, 1, "expired dedup entries must not suppress re-sends")
}

func TestFilterNew_NoRedisPassesEverything(t *testing.T) {
	j := &hybridJournal{ttl: time.Hour}

	customers := someCustomers(5)
	fresh, err := j.FilterNew(context.Background(), customers)
	require.NoError(t, err)
	assert.Equal(t, customers, fresh)
}

func TestMarkDelivered_EmptyBatchIsNoOp(t *testing.T) {
	j, _ := newTestJournal(t, time.Hour)
	assert.NoError(t, j.MarkDelivered(context.Background(), nil))
}

func TestRecordBatch_NoPostgresIsNoOp(t *testing.T) {
	j, _ := newTestJournal(t, time.Hour)
	err := j.RecordBatch(context.Background(), BatchRecord{
		Batch:     1,
		Records:   100,
		Delivered: true,
		SentAt:    time.Now().UTC(),
	})
	assert.NoError(t, err)
}

func TestHealthCheck(t *testing.T) {
	j, mr := newTestJournal(t, time.Hour)
	assert.NoError(t, j.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, j.HealthCheck(context.Background()))
}
