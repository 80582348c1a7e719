package dispatch

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubnect/dispatch/internal/core"
)

// fakeProvider scripts delivery outcomes and records every attempt.
type fakeProvider struct {
	// fail returns the error for the given 1-based attempt number,
	// or nil for success. A nil func always succeeds.
	fail  func(attempt int) error
	calls []*Message
}

func (f *fakeProvider) Send(_ context.Context, msg *Message) (*SendResult, error) {
	f.calls = append(f.calls, msg)
	if f.fail != nil {
		if err := f.fail(len(f.calls)); err != nil {
			return nil, err
		}
	}
	return &SendResult{MessageID: "msg-" + strconv.Itoa(len(f.calls)), Provider: "fake"}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func testConfig() Config {
	return Config{
		Domain:             "mg.example.com",
		APIKey:             "key-test",
		SenderEmail:        "sender@example.com",
		Subject:            "Test Subject",
		Template:           "Hi {name}",
		DelayBetweenEmails: 1.0,
		MaxRetries:         3,
		RetryDelay:         2.0,
	}
}

// newTestPipeline builds a pipeline with a recording sleep stub. The
// returned slice accumulates every wait duration, so pacing (1s) and
// backoff (2s) sleeps can be told apart.
func newTestPipeline(t *testing.T, cfg Config, provider Provider, opts ...Option) (*Pipeline, *[]time.Duration) {
	t.Helper()

	pipe, err := New(cfg, provider, opts...)
	require.NoError(t, err)

	sleeps := &[]time.Duration{}
	pipe.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return ctx.Err()
	}
	return pipe, sleeps
}

func countSleeps(sleeps []time.Duration, d time.Duration) int {
	n := 0
	for _, s := range sleeps {
		if s == d {
			n++
		}
	}
	return n
}

func TestRunAllSucceed(t *testing.T) {
	provider := &fakeProvider{}
	pipe, sleeps := newTestPipeline(t, testConfig(), provider,
		WithFieldMap(FieldMap{"name": "first_name"}),
	)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com", "first_name": "Ada"},
		{"email": "b@example.com", "first_name": "Ben"},
	}))

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Succeeded: 2, Failed: 0}, summary)
	require.Len(t, provider.calls, 2)
	assert.Equal(t, "a@example.com", provider.calls[0].To)
	assert.Equal(t, "b@example.com", provider.calls[1].To)
	assert.Equal(t, "Hi Ada", provider.calls[0].HTML)
	assert.Equal(t, "Hi Ben", provider.calls[1].HTML)

	// Exactly one pacing delay between the two recipients, no backoff.
	assert.Equal(t, 1, countSleeps(*sleeps, pipe.config.SendDelay()))
	assert.Equal(t, 0, countSleeps(*sleeps, pipe.config.RetryBackoff()))
}

func TestRunRetriesExhausted(t *testing.T) {
	provider := &fakeProvider{
		fail: func(int) error { return core.NewNetworkError("fake", errors.New("connection refused")) },
	}
	cfg := testConfig()
	cfg.RetryDelay = 0
	cfg.Template = "Hello"
	pipe, sleeps := newTestPipeline(t, cfg, provider)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Succeeded: 0, Failed: 1}, summary)

	// Exactly max_retries attempts, not max_retries + 1.
	assert.Len(t, provider.calls, 3)
	// No pacing delay for a single recipient.
	assert.Equal(t, 0, countSleeps(*sleeps, pipe.config.SendDelay()))
}

func TestRunBackoffBetweenAttempts(t *testing.T) {
	provider := &fakeProvider{
		fail: func(int) error { return core.NewHTTPError("fake", 500, "boom") },
	}
	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, sleeps := newTestPipeline(t, cfg, provider)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, provider.calls, 3)
	// Backoff between attempts only: 3 attempts, 2 waits.
	assert.Equal(t, 2, countSleeps(*sleeps, pipe.config.RetryBackoff()))
}

func TestRunRecoversAfterRetry(t *testing.T) {
	provider := &fakeProvider{
		fail: func(attempt int) error {
			if attempt == 1 {
				return core.NewHTTPError("fake", 503, "unavailable")
			}
			return nil
		},
	}
	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, _ := newTestPipeline(t, cfg, provider)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Succeeded: 1, Failed: 0}, summary)
	assert.Len(t, provider.calls, 2)
}

func TestRunFirstAttemptSuccessSkipsBackoff(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, sleeps := newTestPipeline(t, cfg, provider)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Len(t, provider.calls, 1)
	assert.Empty(t, *sleeps)
}

func TestRunMissingPlaceholderSkipsDelivery(t *testing.T) {
	provider := &fakeProvider{}
	pipe, _ := newTestPipeline(t, testConfig(), provider) // template "Hi {name}", no field map

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Succeeded: 0, Failed: 1}, summary)
	// Rendering happens before any network call.
	assert.Empty(t, provider.calls)
}

func TestRunMissingEmailColumn(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, _ := newTestPipeline(t, cfg, provider)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"name": "no address here"},
		{"email": "b@example.com"},
	}))

	require.NoError(t, err)
	// The bad record fails without any delivery call; the run continues.
	assert.Equal(t, Summary{Total: 2, Succeeded: 1, Failed: 1}, summary)
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "b@example.com", provider.calls[0].To)
}

func TestRunPacingIndependentOfOutcome(t *testing.T) {
	// First recipient exhausts every retry, second succeeds; the pacing
	// delay between them must still elapse.
	recipientFails := map[string]bool{"a@example.com": true}
	provider := &fakeProvider{}
	provider.fail = func(int) error {
		last := provider.calls[len(provider.calls)-1]
		if recipientFails[last.To] {
			return core.NewNetworkError("fake", errors.New("timeout"))
		}
		return nil
	}

	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, sleeps := newTestPipeline(t, cfg, provider)

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
		{"email": "b@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Succeeded: 1, Failed: 1}, summary)
	assert.Len(t, provider.calls, 4) // 3 failed attempts + 1 success
	assert.Equal(t, 1, countSleeps(*sleeps, pipe.config.SendDelay()))
	assert.Equal(t, 2, countSleeps(*sleeps, pipe.config.RetryBackoff()))
}

func TestRunSummaryInvariant(t *testing.T) {
	provider := &fakeProvider{
		fail: func(attempt int) error {
			if attempt%2 == 0 {
				return core.NewHTTPError("fake", 500, "flaky")
			}
			return nil
		},
	}
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.Template = "Hello"
	pipe, _ := newTestPipeline(t, cfg, provider)

	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, Record{"email": "r" + strconv.Itoa(i) + "@example.com"})
	}

	summary, err := pipe.Run(context.Background(), Records(records))
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, summary.Total, summary.Succeeded+summary.Failed)
}

func TestRunGeneratedCodeInRange(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "{unique_code}"
	pipe, _ := newTestPipeline(t, cfg, provider)

	var records []Record
	for i := 0; i < 50; i++ {
		records = append(records, Record{"email": "r" + strconv.Itoa(i) + "@example.com"})
	}

	_, err := pipe.Run(context.Background(), Records(records))
	require.NoError(t, err)

	for _, msg := range provider.calls {
		code, err := strconv.Atoi(msg.HTML)
		require.NoError(t, err, "body %q is not a numeric code", msg.HTML)
		assert.GreaterOrEqual(t, code, 10000)
		assert.LessOrEqual(t, code, 99999)
	}
}

func TestRunSuppliedCodeNotOverridden(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "code={unique_code}"
	pipe, _ := newTestPipeline(t, cfg, provider,
		WithFieldMap(FieldMap{"unique_code": "code"}),
	)

	_, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com", "code": "42"},
	}))

	require.NoError(t, err)
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "code=42", provider.calls[0].HTML)
}

func TestRunRegistrationLinkInjected(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "register at {registration_link}"
	cfg.RegistrationLink = "https://example.com/register"
	pipe, _ := newTestPipeline(t, cfg, provider)

	_, err := pipe.Run(context.Background(), Records([]Record{
		{"email": "a@example.com"},
	}))

	require.NoError(t, err)
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "register at https://example.com/register", provider.calls[0].HTML)
}

func TestRunCancelledContext(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, _ := newTestPipeline(t, cfg, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := pipe.Run(ctx, Records([]Record{
		{"email": "a@example.com"},
		{"email": "b@example.com"},
	}))

	require.ErrorIs(t, err, context.Canceled)
	// The summary stays consistent for whatever was processed.
	assert.Equal(t, summary.Total, summary.Succeeded+summary.Failed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""

	_, err := New(cfg, &fakeProvider{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "api_key", verr.Field)
}

func TestNewRejectsNilProvider(t *testing.T) {
	_, err := New(testConfig(), nil)
	require.Error(t, err)
}

func TestWithEmailColumn(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Template = "Hello"
	pipe, _ := newTestPipeline(t, cfg, provider, WithEmailColumn("contact"))

	summary, err := pipe.Run(context.Background(), Records([]Record{
		{"contact": "a@example.com"},
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "a@example.com", provider.calls[0].To)
}
