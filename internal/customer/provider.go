package customer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/metrics"
)

// Provider streams validated customer records out of a CSV file in batches.
// Invalid rows are logged and skipped; they never reach the API client.
type Provider struct {
	logger    *zap.Logger
	path      string
	batchSize int
	validator *Validator
}

// NewProvider constructs a Provider for the given CSV path.
// The file must exist at construction time.
func NewProvider(logger *zap.Logger, path string, batchSize int, validator *Validator) (*Provider, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("customer data file %s: %w", path, err)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &Provider{
		logger:    logger,
		path:      path,
		batchSize: batchSize,
		validator: validator,
	}, nil
}

// ForEachBatch reads the CSV and invokes fn with up to batchSize validated
// records at a time. A batch is counted against the rows read, not the rows
// that survived validation, so memory use stays bounded by batchSize.
// Returns fn's error unmodified if fn fails.
func (p *Provider) ForEachBatch(ctx context.Context, fn func(batch []Customer) error) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open customer data: %w", err)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		p.logger.Warn("customer.empty_file", zap.String("path", p.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return err
	}

	var (
		batch      []Customer
		inBatch    int
		row        int
		totalRead  int
		totalValid int
	)

	flush := func() error {
		inBatch = 0
		if len(batch) == 0 {
			return nil
		}
		out := batch
		batch = nil
		return fn(out)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			p.logger.Error("customer.row_unreadable", zap.Int("row", row), zap.Error(err))
			metrics.IncCustomersRejected("unreadable")
			continue
		}
		totalRead++

		c, err := parseRow(record, cols)
		if err == nil {
			err = p.validator.Validate(c)
		}
		if err != nil {
			p.logger.Error("customer.validation_failed",
				zap.Int("row", row),
				zap.Strings("record", record),
				zap.Error(err))
			metrics.IncCustomersRejected("invalid")
		} else {
			batch = append(batch, c)
			totalValid++
		}

		inBatch++
		if inBatch >= p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	p.logger.Info("customer.processing_complete",
		zap.String("path", p.path),
		zap.Int("total_read", totalRead),
		zap.Int("total_valid", totalValid))

	return nil
}

// columnIndexes locates the required CSV columns in the header row.
type columnIndexes struct {
	name, age, cookie, banner int
}

func mapColumns(header []string) (columnIndexes, error) {
	idx := columnIndexes{name: -1, age: -1, cookie: -1, banner: -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			idx.name = i
		case "age":
			idx.age = i
		case "cookie":
			idx.cookie = i
		case "banner_id":
			idx.banner = i
		}
	}
	if idx.name < 0 || idx.age < 0 || idx.cookie < 0 || idx.banner < 0 {
		return idx, fmt.Errorf("csv header missing required columns (need Name, Age, Cookie, Banner_id), got %v", header)
	}
	return idx, nil
}

func parseRow(record []string, cols columnIndexes) (Customer, error) {
	max := cols.name
	for _, i := range []int{cols.age, cols.cookie, cols.banner} {
		if i > max {
			max = i
		}
	}
	if len(record) <= max {
		return Customer{}, fmt.Errorf("row has %d fields, need at least %d", len(record), max+1)
	}

	age, err := strconv.Atoi(strings.TrimSpace(record[cols.age]))
	if err != nil {
		return Customer{}, fmt.Errorf("age %q is not an integer", record[cols.age])
	}
	banner, err := strconv.Atoi(strings.TrimSpace(record[cols.banner]))
	if err != nil {
		return Customer{}, fmt.Errorf("banner id %q is not an integer", record[cols.banner])
	}

	return Customer{
		Name:     NormalizeName(record[cols.name]),
		Age:      age,
		Cookie:   strings.TrimSpace(record[cols.cookie]),
		BannerID: banner,
	}, nil
}
