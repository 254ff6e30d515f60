package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/dqcheck/internal/dom"
)

// Page is a browser tab holding a loaded document
type Page struct {
	element
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes actions in the tab, stopping early when ctx is done
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// WaitPresent waits until selector matches an element in the document
func (p *Page) WaitPresent(ctx context.Context, selector string, timeout time.Duration) (dom.Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := p.run(waitCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &dom.ElementNotFoundError{Selector: selector, Timeout: timeout}
	}
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &dom.ElementNotFoundError{Selector: selector, Timeout: timeout}
	}
	return element{page: p, node: nodes[0]}, nil
}

// FullScreenshot captures the whole page as PNG
func (p *Page) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab
func (p *Page) Close() error {
	p.cancel()
	return nil
}

// element is a DOM node of a page. A nil node is the document itself.
type element struct {
	page *Page
	node *cdp.Node
}

func (e element) query(selector string, nodes *[]*cdp.Node) chromedp.QueryAction {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if e.node != nil {
		opts = append(opts, chromedp.FromNode(e.node))
	}
	return chromedp.Nodes(selector, nodes, opts...)
}

func (e element) Find(ctx context.Context, selector string) (dom.Element, error) {
	var nodes []*cdp.Node
	if err := e.page.run(ctx, e.query(selector, &nodes)); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, dom.ErrNotFound
	}
	return element{page: e.page, node: nodes[0]}, nil
}

func (e element) FindAll(ctx context.Context, selector string) ([]dom.Element, error) {
	var nodes []*cdp.Node
	if err := e.page.run(ctx, e.query(selector, &nodes)); err != nil {
		return nil, err
	}
	out := make([]dom.Element, len(nodes))
	for i, n := range nodes {
		out[i] = element{page: e.page, node: n}
	}
	return out, nil
}

// target selects this node, or the root element for the document
func (e element) target() (any, []chromedp.QueryOption) {
	if e.node == nil {
		return "html", []chromedp.QueryOption{chromedp.ByQuery}
	}
	return []cdp.NodeID{e.node.NodeID}, []chromedp.QueryOption{chromedp.ByNodeID}
}

// Text returns the text content. SVG text has no layout-based innerText.
func (e element) Text(ctx context.Context) (string, error) {
	var s string
	sel, opts := e.target()
	if err := e.page.run(ctx, chromedp.TextContent(sel, &s, opts...)); err != nil {
		return "", err
	}
	return s, nil
}

func (e element) Attr(ctx context.Context, name string) (string, bool, error) {
	if e.node == nil {
		return "", false, nil
	}
	var (
		v  string
		ok bool
	)
	err := e.page.run(ctx, chromedp.AttributeValue([]cdp.NodeID{e.node.NodeID}, name, &v, &ok, chromedp.ByNodeID))
	if err != nil {
		return "", false, err
	}
	return v, ok, nil
}

func (e element) HTML(ctx context.Context) (string, error) {
	var s string
	sel, opts := e.target()
	if err := e.page.run(ctx, chromedp.OuterHTML(sel, &s, opts...)); err != nil {
		return "", err
	}
	return s, nil
}

func (e element) Click(ctx context.Context) error {
	if e.node == nil {
		return dom.ErrNotInteractive
	}
	return e.page.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e element) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	sel, opts := e.target()
	if err := e.page.run(ctx, chromedp.Screenshot(sel, &buf, opts...)); err != nil {
		return nil, err
	}
	return buf, nil
}
