package customer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestProvider(t *testing.T, content string, batchSize int) *Provider {
	t.Helper()
	v, err := NewValidator(defaultBounds())
	require.NoError(t, err)
	p, err := NewProvider(zap.NewNop(), writeCSV(t, content), batchSize, v)
	require.NoError(t, err)
	return p
}

func collectBatches(t *testing.T, p *Provider) [][]Customer {
	t.Helper()
	var batches [][]Customer
	err := p.ForEachBatch(context.Background(), func(batch []Customer) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)
	return batches
}

func TestProvider_ValidRows(t *testing.T) {
	csv := "Name,Age,Cookie,Banner_id\n" +
		"John Doe,25," + uuid.NewString() + ",1\n" +
		"Jane Smith,30," + uuid.NewString() + ",2\n"

	p := newTestProvider(t, csv, 100)
	batches := collectBatches(t, p)

	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "John Doe", batches[0][0].Name)
	assert.Equal(t, 30, batches[0][1].Age)
	assert.Equal(t, 2, batches[0][1].BannerID)
}

func TestProvider_SkipsInvalidRows(t *testing.T) {
	csv := "Name,Age,Cookie,Banner_id\n" +
		"John Doe,25," + uuid.NewString() + ",1\n" +
		"Bad Name 42,25," + uuid.NewString() + ",1\n" + // digits in name
		"Jane Smith,12," + uuid.NewString() + ",1\n" + // under age
		"Bob Brown,25,not-a-uuid,1\n" + // bad cookie
		"Ann White,25," + uuid.NewString() + ",200\n" + // banner out of range
		"Tim Green,abc," + uuid.NewString() + ",1\n" + // non-numeric age
		"Sue Black,40," + uuid.NewString() + ",5\n"

	p := newTestProvider(t, csv, 100)
	batches := collectBatches(t, p)

	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "John Doe", batches[0][0].Name)
	assert.Equal(t, "Sue Black", batches[0][1].Name)
}

func TestProvider_BatchSplitting(t *testing.T) {
	csv := "Name,Age,Cookie,Banner_id\n"
	for i := 0; i < 25; i++ {
		csv += fmt.Sprintf("John Doe,25,%s,1\n", uuid.NewString())
	}

	p := newTestProvider(t, csv, 10)
	batches := collectBatches(t, p)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 5)
}

func TestProvider_EmptyFile(t *testing.T) {
	p := newTestProvider(t, "", 10)
	batches := collectBatches(t, p)
	assert.Empty(t, batches)
}

func TestProvider_HeaderOnly(t *testing.T) {
	p := newTestProvider(t, "Name,Age,Cookie,Banner_id\n", 10)
	batches := collectBatches(t, p)
	assert.Empty(t, batches)
}

func TestProvider_MissingColumns(t *testing.T) {
	p := newTestProvider(t, "Name,Age\nJohn Doe,25\n", 10)
	err := p.ForEachBatch(context.Background(), func([]Customer) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestProvider_MissingFile(t *testing.T) {
	v, err := NewValidator(defaultBounds())
	require.NoError(t, err)
	_, err = NewProvider(zap.NewNop(), "/nonexistent/data.csv", 10, v)
	assert.Error(t, err)
}

func TestProvider_CallbackErrorStopsIteration(t *testing.T) {
	csv := "Name,Age,Cookie,Banner_id\n"
	for i := 0; i < 20; i++ {
		csv += fmt.Sprintf("John Doe,25,%s,1\n", uuid.NewString())
	}

	p := newTestProvider(t, csv, 5)
	sentinel := errors.New("downstream failed")
	calls := 0
	err := p.ForEachBatch(context.Background(), func([]Customer) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}
