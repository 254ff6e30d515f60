// Package artifact downloads build artifacts such as a reference Parquet file.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

// Options configures a Fetcher
type Options struct {
	Timeout  time.Duration `yaml:"timeout"`
	User     string        `yaml:"user"`
	Token    string        `yaml:"token"`
	Insecure bool          `yaml:"insecure"`
}

// Fetcher downloads artifacts over HTTP
type Fetcher struct {
	client *resty.Client
}

// New creates a Fetcher
func New(opts Options) *Fetcher {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.User != "" {
		client.SetBasicAuth(opts.User, opts.Token)
	}
	return &Fetcher{client: client}
}

// StatusError reports a non-2xx response
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

// Fetch downloads url to dest. The file is written to a temporary name in
// the destination directory and renamed on success, so a failed download
// leaves nothing behind.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	res, err := f.client.R().
		SetContext(ctx).
		SetOutput(tmpPath).
		Get(url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if !res.IsSuccess() {
		return &StatusError{URL: url, Status: res.StatusCode()}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	log.Info("Fetched artifact", "url", url, "dest", dest, "took", res.Time())
	return nil
}
