package showads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second}

	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 6*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestPolicy_SuccessFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), zap.NewNop(), "/test", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ClientErrorFatalImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), zap.NewNop(), "/test", func(context.Context) error {
		calls++
		return &APIError{Op: "/test", Class: ClassClientError, Status: 400}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "client errors must not be retried")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassClientError, apiErr.Class)
}

func TestPolicy_RateLimitedRetriesUntilExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), zap.NewNop(), "/test", func(context.Context) error {
		calls++
		return &APIError{Op: "/test", Class: ClassRateLimited, Status: 429}
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls, "retryable failures continue until the budget is spent")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)

	var apiErr *APIError
	require.ErrorAs(t, exhausted.Last, &apiErr)
	assert.Equal(t, ClassRateLimited, apiErr.Class)
}

func TestPolicy_ServerErrorThenSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), zap.NewNop(), "/test", func(context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{Op: "/test", Class: ClassServerError, Status: 500}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_UnauthorizedRetriesWithoutBackoff(t *testing.T) {
	// A huge base delay would stall the test if the 401 path slept.
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	start := time.Now()
	err := p.Do(context.Background(), zap.NewNop(), "/test", func(context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{Op: "/test", Class: ClassUnauthorized, Status: 401}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Less(t, time.Since(start), time.Second, "401 retries must not back off")
}

func TestPolicy_UnclassifiedErrorSurfacesImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	sentinel := errors.New("token acquisition failed")
	calls := 0
	err := p.Do(context.Background(), zap.NewNop(), "/test", func(context.Context) error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ContextCancelDuringBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, zap.NewNop(), "/test", func(context.Context) error {
		return &APIError{Op: "/test", Class: ClassServerError, Status: 500}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureClass
	}{
		{401, ClassUnauthorized},
		{429, ClassRateLimited},
		{500, ClassServerError},
		{502, ClassServerError},
		{400, ClassClientError},
		{403, ClassClientError},
		{404, ClassClientError},
	}
	for _, tc := range tests {
		err := classifyStatus("/test", tc.status, nil)
		require.NotNil(t, err, "status %d", tc.status)
		assert.Equal(t, tc.want, err.Class, "status %d", tc.status)
	}

	assert.Nil(t, classifyStatus("/test", 200, nil))
	assert.Nil(t, classifyStatus("/test", 204, nil))
}
