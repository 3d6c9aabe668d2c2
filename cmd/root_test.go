package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryConfig = `
ledger:
  dsn: memory
storage:
  backend: memory
logging:
  level: error
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(memoryConfig), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommandPrintsJobID(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><title>t</title><body>x</body></html>`))
	}))
	defer site.Close()

	out, err := run(t, "crawl", site.URL, "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{20}\n$`), out)
}

func TestCrawlCommandRejectsBadURL(t *testing.T) {
	_, err := run(t, "crawl", "mailto:someone@example.com", "--config", writeConfig(t))
	require.Error(t, err)
}

func TestCrawlCommandRequiresOneArg(t *testing.T) {
	_, err := run(t, "crawl", "--config", writeConfig(t))
	require.Error(t, err)
}

func TestCleanupCommand(t *testing.T) {
	_, err := run(t, "cleanup", "--config", writeConfig(t))
	require.NoError(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "cleanup", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
