package showads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/customer"
	"github.com/adflow-systems/showads-connector/internal/metrics"
	"github.com/adflow-systems/showads-connector/internal/rate"
)

const (
	authPath = "/auth"
	bulkPath = "/banners/show/bulk"

	// DefaultBulkLimit is the maximum record count the ShowAds bulk endpoint
	// accepts per call.
	DefaultBulkLimit = 1000
)

// ClientConfig carries the tunables for the ShowAds API client.
type ClientConfig struct {
	BaseURL        string
	ProjectKey     string
	BulkLimit      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	TokenTTL       time.Duration // safety margin below the server-side 24h lifetime
	Timeout        time.Duration // per-request connect/read timeout
}

// Client is the authenticated, retrying, bulk-dispatching ShowAds API client.
// A single Client serves one project credential; the shared http.Client is
// reused read-only by all concurrent chunk sends.
type Client struct {
	logger  *zap.Logger
	cfg     ClientConfig
	http    *http.Client
	rateMgr *rate.Manager
	policy  Policy
	tokens  *TokenCache
}

// NewClient constructs a Client. rateMgr may be nil to disable outbound
// throttling (tests do this).
func NewClient(logger *zap.Logger, cfg ClientConfig, rateMgr *rate.Manager) *Client {
	if cfg.BulkLimit <= 0 {
		cfg.BulkLimit = DefaultBulkLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		logger:  logger,
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		rateMgr: rateMgr,
		policy:  Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.RetryBaseDelay},
	}
	c.tokens = NewTokenCache(cfg.TokenTTL, c.authenticate)
	return c
}

// SendCustomers delivers all records through the bulk endpoint, splitting
// them into chunks of at most BulkLimit and dispatching chunks concurrently.
// An empty input is a warned no-op, not an error. On failure the returned
// DeliveryError reports which chunks were not confirmed delivered; sibling
// sends already in flight are not cancelled by the first fatal failure.
func (c *Client) SendCustomers(ctx context.Context, customers []customer.Customer) error {
	if len(customers) == 0 {
		c.logger.Warn("showads.no_customers")
		return nil
	}

	chunks := chunkCustomers(customers, c.cfg.BulkLimit)
	c.logger.Info("showads.dispatch_start",
		zap.Int("customers", len(customers)),
		zap.Int("chunks", len(chunks)))

	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []customer.Customer) {
			defer wg.Done()
			errs[i] = c.sendChunk(ctx, i, chunk)
		}(i, chunk)
	}
	wg.Wait()

	var (
		failed      []int
		unconfirmed int
		first       error
	)
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed = append(failed, i)
		unconfirmed += len(chunks[i])
		if first == nil {
			first = err
		}
	}
	if first != nil {
		return &DeliveryError{
			Chunks:       len(chunks),
			FailedChunks: failed,
			Unconfirmed:  unconfirmed,
			First:        first,
		}
	}

	c.logger.Info("showads.dispatch_complete",
		zap.Int("customers", len(customers)),
		zap.Int("chunks", len(chunks)))
	return nil
}

// sendChunk pushes one chunk through the retry policy. The token is
// re-fetched on every attempt so a 401-invalidated token is replaced before
// the resend.
func (c *Client) sendChunk(ctx context.Context, idx int, chunk []customer.Customer) error {
	req := BulkRequest{Data: make([]BulkEntry, 0, len(chunk))}
	for _, cu := range chunk {
		req.Data = append(req.Data, BulkEntry{VisitorCookie: cu.Cookie, BannerID: cu.BannerID})
	}

	err := c.policy.Do(ctx, c.logger, bulkPath, func(ctx context.Context) error {
		token, err := c.tokens.Get(ctx)
		if err != nil {
			return err
		}

		err = c.postJSON(ctx, bulkPath, token, req, nil)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Class == ClassUnauthorized {
			c.tokens.Invalidate()
			c.logger.Warn("showads.token_rejected", zap.Int("chunk", idx))
		}
		return err
	})
	if err != nil {
		c.logger.Error("showads.chunk_failed",
			zap.Int("chunk", idx),
			zap.Int("records", len(chunk)),
			zap.Error(err))
		return err
	}

	metrics.AddCustomersSent(len(chunk))
	c.logger.Info("showads.chunk_sent",
		zap.Int("chunk", idx),
		zap.Int("records", len(chunk)))
	return nil
}

// authenticate exchanges the project key for a fresh access token. The
// exchange runs under the same retry policy as bulk sends; TokenCache
// serializes callers so at most one exchange is in flight.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	var token string
	err := c.policy.Do(ctx, c.logger, authPath, func(ctx context.Context) error {
		var resp AuthResponse
		if err := c.postJSON(ctx, authPath, "", AuthRequest{ProjectKey: c.cfg.ProjectKey}, &resp); err != nil {
			return err
		}
		if resp.AccessToken == "" {
			return fmt.Errorf("showads auth returned empty AccessToken")
		}
		token = resp.AccessToken
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("showads.auth_success")
	return token, nil
}

// postJSON issues one POST and classifies the outcome. token may be empty
// for the auth endpoint.
func (c *Client) postJSON(ctx context.Context, path, token string, body any, out any) error {
	if c.rateMgr != nil {
		if err := c.rateMgr.Wait(ctx, path); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncShowAdsRequest(path, "network_error")
		return networkError(path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, _ := io.ReadAll(resp.Body)
	metrics.ObserveDuration(metrics.ShowAdsRequestDuration, start, path)
	metrics.IncShowAdsRequest(path, strconv.Itoa(resp.StatusCode))

	if apiErr := classifyStatus(path, resp.StatusCode, respBody); apiErr != nil {
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// chunkCustomers splits customers into contiguous chunks of at most limit,
// preserving original order. An empty input yields zero chunks.
func chunkCustomers(customers []customer.Customer, limit int) [][]customer.Customer {
	var chunks [][]customer.Customer
	for start := 0; start < len(customers); start += limit {
		end := start + limit
		if end > len(customers) {
			end = len(customers)
		}
		chunks = append(chunks, customers[start:end])
	}
	return chunks
}
