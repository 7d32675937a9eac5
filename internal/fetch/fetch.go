// Package fetch downloads remote backups (JSON or iCalendar) for import,
// keeping a small conditional-GET cache on disk.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "daycounter/internal/log"
)

const maxBodyBytes = 10 << 20

// Result is the body of one download.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	FromCache   bool // true if the cached body was reused (304 or fetch failure)
}

// IsICS reports whether the payload should be parsed as iCalendar: either
// the server says text/calendar or the URL path ends in .ics.
func (r Result) IsICS() bool {
	if mt, _, err := mime.ParseMediaType(r.ContentType); err == nil && mt == "text/calendar" {
		return true
	}
	if u, err := url.Parse(r.URL); err == nil {
		return strings.EqualFold(filepath.Ext(u.Path), ".ics")
	}
	return false
}

type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads import payloads with ETag / Last-Modified revalidation.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. An empty cacheDir
// disables the disk cache.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// DefaultCacheDir is ~/.cache/daycounter/import-cache (per OS conventions).
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "daycounter", "import-cache")
}

// IsURL reports whether s looks like an http(s) URL rather than a path.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads rawURL. On network errors or non-OK responses it falls
// back to a cached body when one exists.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	if !IsURL(rawURL) {
		return Result{}, fmt.Errorf("not an http(s) url: %q", rawURL)
	}

	cachePath := f.cachePathForURL(rawURL)
	var meta cacheEntry
	var cachedBody []byte
	if cachePath != "" {
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return Result{}, err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body"))
	}
	cached := Result{URL: rawURL, Body: cachedBody, ContentType: meta.ContentType, FromCache: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("import fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("import fetch failed, using cached body", err, "url", redactURL(rawURL))
			return cached, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return Result{}, err
		}
		if len(body) > maxBodyBytes {
			return Result{}, fmt.Errorf("import body exceeds %d bytes", maxBodyBytes)
		}

		res := Result{URL: rawURL, Body: body, ContentType: resp.Header.Get("Content-Type")}
		if cachePath != "" {
			entry := cacheEntry{
				URL:          rawURL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				ContentType:  res.ContentType,
			}
			if err := saveCache(cachePath, entry, body); err != nil {
				// The fresh body is still usable.
				appLog.Error("import cache save failed", err, "url", redactURL(rawURL))
			}
		}
		appLog.Info("import fetch success", "url", redactURL(rawURL), "bytes", len(body))
		return res, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("import fetch not modified; using cache", "url", redactURL(rawURL))
		return cached, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("import fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL))
			return cached, nil
		}
		return Result{}, errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; import links often carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
