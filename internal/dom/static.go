package dom

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type staticElement struct {
	sel *goquery.Selection
}

// StaticPage is a parsed HTML file. It answers queries but cannot be
// clicked or rendered.
type StaticPage struct {
	staticElement
	path   string
	closed bool
}

// OpenStatic parses the HTML file at path
func OpenStatic(_ context.Context, path string) (Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourcePathError{Path: path, Err: err}
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, &SourcePathError{Path: path, Err: err}
	}
	return &StaticPage{staticElement: staticElement{sel: doc.Selection}, path: path}, nil
}

// ParseStatic builds a static page from an HTML string
func ParseStatic(html string) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &StaticPage{staticElement: staticElement{sel: doc.Selection}}, nil
}

func (e staticElement) Find(_ context.Context, selector string) (Element, error) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, ErrNotFound
	}
	return staticElement{sel: found}, nil
}

func (e staticElement) FindAll(_ context.Context, selector string) ([]Element, error) {
	var out []Element
	e.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, staticElement{sel: s})
	})
	return out, nil
}

func (e staticElement) Text(context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e staticElement) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e staticElement) HTML(context.Context) (string, error) {
	return goquery.OuterHtml(e.sel)
}

func (e staticElement) Click(context.Context) error {
	return ErrNotInteractive
}

func (e staticElement) Screenshot(context.Context) ([]byte, error) {
	return nil, ErrNotInteractive
}

// WaitPresent checks once: a static tree never changes
func (p *StaticPage) WaitPresent(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	el, err := p.Find(ctx, selector)
	if err != nil {
		return nil, &ElementNotFoundError{Selector: selector, Timeout: timeout}
	}
	return el, nil
}

func (p *StaticPage) FullScreenshot(context.Context) ([]byte, error) {
	return nil, ErrNotInteractive
}

func (p *StaticPage) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called
func (p *StaticPage) Closed() bool {
	return p.closed
}
