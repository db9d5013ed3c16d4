// Package versioncheck compares the running ipcctl build against the latest
// published release. Results are cached on disk so the network is consulted
// at most once per TTL.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPI is the base URL for the GitHub API.
	DefaultAPI = "https://api.github.com"

	// DefaultRepo is the repository releases are published under.
	DefaultRepo = "gobeyondidentity/ipclink"

	// DefaultTimeout bounds a single release lookup.
	DefaultTimeout = 2 * time.Second

	// DefaultTTL is how long a cached lookup stays fresh.
	DefaultTTL = 24 * time.Hour
)

// Release is the subset of a GitHub release the checker reads.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result is the outcome of a check.
type Result struct {
	Current         string `json:"current" yaml:"current"`
	Latest          string `json:"latest" yaml:"latest"`
	ReleaseURL      string `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
	FromCache       bool   `json:"from_cache" yaml:"from_cache"`
}

type cacheEntry struct {
	Latest     string    `yaml:"latest"`
	ReleaseURL string    `yaml:"release_url"`
	CheckedAt  time.Time `yaml:"checked_at"`
}

func (e *cacheEntry) fresh(ttl time.Duration, now time.Time) bool {
	return e != nil && now.Sub(e.CheckedAt) < ttl
}

// Checker looks up the latest release.
type Checker struct {
	BaseURL    string
	Repo       string
	CachePath  string
	TTL        time.Duration
	HTTPClient *http.Client
}

// NewChecker returns a Checker with default settings.
func NewChecker() *Checker {
	return &Checker{
		BaseURL:    DefaultAPI,
		Repo:       DefaultRepo,
		CachePath:  CachePath(),
		TTL:        DefaultTTL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Check reports whether a release newer than current exists. A fresh cache
// entry is used without a lookup. When the lookup fails a stale entry is
// still returned, together with the error.
func (c *Checker) Check(ctx context.Context, current string) (*Result, error) {
	res := &Result{Current: strings.TrimPrefix(current, "v")}

	cached, _ := readCache(c.CachePath)
	if cached.fresh(c.TTL, time.Now()) {
		res.Latest, res.ReleaseURL, res.FromCache = cached.Latest, cached.ReleaseURL, true
	} else {
		rel, err := c.fetchLatest(ctx)
		if err != nil {
			if cached == nil {
				return nil, err
			}
			res.Latest, res.ReleaseURL, res.FromCache = cached.Latest, cached.ReleaseURL, true
			res.UpdateAvailable = IsNewer(current, res.Latest)
			return res, err
		}
		res.Latest = strings.TrimPrefix(rel.TagName, "v")
		res.ReleaseURL = rel.HTMLURL
		// A failed cache write only costs a lookup next time.
		_ = writeCache(c.CachePath, &cacheEntry{
			Latest:     res.Latest,
			ReleaseURL: res.ReleaseURL,
			CheckedAt:  time.Now().UTC(),
		})
	}

	res.UpdateAvailable = IsNewer(current, res.Latest)
	return res, nil
}

func (c *Checker) fetchLatest(ctx context.Context) (*Release, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimSuffix(c.BaseURL, "/"), c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "ipcctl")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	if rel.TagName == "" {
		return nil, errors.New("release has no tag")
	}
	return &rel, nil
}

// IsNewer reports whether latest is a newer semantic version than current.
// Either side failing to parse (for example a "dev" build) yields false.
func IsNewer(current, latest string) bool {
	cur, lat := normalize(current), normalize(latest)
	if !semver.IsValid(cur) || !semver.IsValid(lat) {
		return false
	}
	return semver.Compare(cur, lat) < 0
}

func normalize(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// CachePath returns $XDG_CACHE_HOME/ipcctl/release.yaml, or a temp-dir
// fallback when no cache directory is known.
func CachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ipcctl", "release.yaml")
}

func readCache(path string) (*cacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e cacheEntry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func writeCache(path string, e *cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
