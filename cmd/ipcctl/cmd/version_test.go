package cmd

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gobeyondidentity/ipclink/internal/testutil/cli"
	"github.com/gobeyondidentity/ipclink/internal/version"
	"github.com/gobeyondidentity/ipclink/internal/versioncheck"
)

func testChecker(t *testing.T, status int, body string) *versioncheck.Checker {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return &versioncheck.Checker{
		BaseURL:    server.URL,
		Repo:       versioncheck.DefaultRepo,
		CachePath:  filepath.Join(t.TempDir(), "release.yaml"),
		TTL:        24 * time.Hour,
		HTTPClient: server.Client(),
	}
}

func TestVersionCommand_BasicOutput(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	t.Log("Test that version command shows current version")
	outputFormat = "table"

	result := cli.Run(newVersionCmd())
	result.AssertSuccess(t)
	result.AssertPrefix(t, "ipcctl version "+version.Version)
	result.AssertContains(t, "platform:")
}

func TestVersionCommand_JSON(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	outputFormat = "json"
	defer func() { outputFormat = "table" }()

	result := cli.Run(newVersionCmd())
	result.AssertSuccess(t)

	var info version.Info
	result.DecodeJSON(t, &info)
	if info.Version != version.String() {
		t.Errorf("expected version %q, got %q", version.String(), info.Version)
	}
	if info.GoVersion == "" {
		t.Error("expected go version")
	}
}

func TestVersionCommand_CheckFlag_UpdateAvailable(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	t.Log("Test that version --check shows newer version available")
	outputFormat = "table"

	originalVersion := version.Version
	version.Version = "1.0.0"
	defer func() { version.Version = originalVersion }()

	checker := testChecker(t, http.StatusOK,
		`{"tag_name":"v99.99.99","html_url":"https://github.com/gobeyondidentity/ipclink/releases/tag/v99.99.99"}`)

	result := cli.Run(newVersionCmdWithChecker(checker), "--check")
	result.AssertSuccess(t)
	result.AssertContains(t, "ipcctl version 1.0.0")
	result.AssertContains(t, "A newer version is available: 99.99.99")
	result.AssertContains(t, "Release notes:")
}

func TestVersionCommand_CheckFlag_NoUpdate(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	outputFormat = "table"

	originalVersion := version.Version
	version.Version = "2.1.0"
	defer func() { version.Version = originalVersion }()

	checker := testChecker(t, http.StatusOK, `{"tag_name":"v2.1.0","html_url":"https://example.com"}`)

	result := cli.Run(newVersionCmdWithChecker(checker), "--check")
	result.AssertSuccess(t)
	result.AssertContains(t, "You are running the latest version")
}

func TestVersionCommand_CheckFlag_NetworkError(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	t.Log("Test that version --check handles lookup errors gracefully")
	outputFormat = "table"

	checker := testChecker(t, http.StatusServiceUnavailable, "")

	result := cli.Run(newVersionCmdWithChecker(checker), "--check")
	result.AssertSuccess(t)
	result.AssertContains(t, "Could not check for updates")
}
