package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailgunProviderFromConfig(t *testing.T) {
	provider, err := NewMailgunProvider(testConfig())

	require.NoError(t, err)
	assert.Equal(t, "mailgun", provider.Name())
}

func TestNewMailgunProviderRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""

	_, err := NewMailgunProvider(cfg)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "api_key", verr.Field)
}

func TestNewDryRunProvider(t *testing.T) {
	provider := NewDryRunProvider(nil)

	assert.Equal(t, "dryrun", provider.Name())

	result, err := provider.Send(context.Background(), &Message{To: "a@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.MessageID)
}

func TestOpenCSVFeedsPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipients.csv")
	require.NoError(t, os.WriteFile(path, []byte("email,name\na@example.com,Ada\nb@example.com,Ben\n"), 0o600))

	src, err := OpenCSV(path)
	require.NoError(t, err)
	defer src.Close()

	provider := &fakeProvider{}
	pipe, _ := newTestPipeline(t, testConfig(), provider,
		WithFieldMap(FieldMap{"name": "name"}),
	)

	summary, err := pipe.Run(context.Background(), src)

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Succeeded: 2, Failed: 0}, summary)
	require.Len(t, provider.calls, 2)
	assert.Equal(t, "Hi Ada", provider.calls[0].HTML)
}
