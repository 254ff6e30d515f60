// Package browser renders local documents in headless Chrome and exposes
// them through the dom interfaces.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/dqcheck/internal/dom"
)

// Options configures the browser session
type Options struct {
	// ExecPath overrides the Chrome binary lookup
	ExecPath string `yaml:"exec_path"`
	// Headful shows the browser window
	Headful bool `yaml:"headful"`
	// LoadTimeout bounds navigation to a document
	LoadTimeout  time.Duration `yaml:"load_timeout"`
	WindowWidth  int           `yaml:"window_width"`
	WindowHeight int           `yaml:"window_height"`
}

// Session is a running browser. Pages opened from it share the process.
type Session struct {
	ctx         context.Context
	allocCancel context.CancelFunc
	cancel      context.CancelFunc
	loadTimeout time.Duration
}

// NewSession starts a browser. Close must be called to stop it.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if opts.Headful {
		execOpts = append(execOpts, chromedp.Flag("headless", false))
	} else {
		execOpts = append(execOpts, chromedp.Headless)
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		execOpts = append(execOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Session{
		ctx:         browserCtx,
		allocCancel: allocCancel,
		cancel:      cancel,
		loadTimeout: opts.LoadTimeout,
	}, nil
}

// Close stops the browser and every page opened from it
func (s *Session) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

// Open loads a local HTML file in a new tab
func (s *Session) Open(ctx context.Context, path string) (dom.Page, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &dom.SourcePathError{Path: path, Err: err}
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, &dom.SourcePathError{Path: path, Err: err}
	}

	tabCtx, cancel := chromedp.NewContext(s.ctx)
	// The tab lives as long as the context of its first Run
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	p := &Page{tabCtx: tabCtx, cancel: cancel}
	p.element = element{page: p}

	loadCtx, loadCancel := context.WithTimeout(ctx, s.loadTimeout)
	defer loadCancel()

	url := "file://" + filepath.ToSlash(abs)
	if err := p.run(loadCtx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	log.Debug("Opened document", "url", url)
	return p, nil
}

// Opener returns s.Open as a dom.Opener
func (s *Session) Opener() dom.Opener {
	return s.Open
}
