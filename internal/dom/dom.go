// Package dom defines the element tree queried by the extractors and a
// static implementation over an HTML file. The browser package provides
// the live, rendered implementation.
package dom

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Find when no element matches
	ErrNotFound = errors.New("element not found")
	// ErrNotInteractive is returned for actions a static tree cannot perform
	ErrNotInteractive = errors.New("page is not interactive")
)

// Element is a node of a document that can be queried and acted on
type Element interface {
	// Find returns the first descendant matching a CSS selector, or ErrNotFound
	Find(ctx context.Context, selector string) (Element, error)
	// FindAll returns all descendants matching a CSS selector in document order
	FindAll(ctx context.Context, selector string) ([]Element, error)
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Page is a loaded document
type Page interface {
	Element
	// WaitPresent waits up to timeout for selector to match and returns the
	// first match, or an *ElementNotFoundError.
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	FullScreenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener loads the document at path
type Opener func(ctx context.Context, path string) (Page, error)

// ElementNotFoundError reports a selector that did not match within the wait
type ElementNotFoundError struct {
	Selector string
	Timeout  time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %q not found after %s", e.Selector, e.Timeout)
}

func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SourcePathError reports a document path that does not exist or cannot be read
type SourcePathError struct {
	Path string
	Err  error
}

func (e *SourcePathError) Error() string {
	return fmt.Sprintf("cannot open document %s: %v", e.Path, e.Err)
}

func (e *SourcePathError) Unwrap() error {
	return e.Err
}
