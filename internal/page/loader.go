package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// Loader errors
var (
	ErrBadStatus   = errors.New("unexpected HTTP status")
	ErrNotHTML     = errors.New("response is not HTML")
	ErrUnknownKind = errors.New("unknown loader")
)

// Snapshot is a loaded page: the final URL after redirects and its HTML.
type Snapshot struct {
	URL  string
	HTML string
}

// Loader fetches a page.
type Loader interface {
	Load(ctx context.Context, url string) (*Snapshot, error)
}

// LoaderConfig configures NewLoader.
type LoaderConfig struct {
	// Kind selects the loader: "http" (default) or "chrome".
	Kind string

	// Timeout bounds a single load (default: 30s).
	Timeout time.Duration

	// RemoteURL points the chrome loader at a running browser's DevTools
	// websocket instead of launching one.
	RemoteURL string
}

// NewLoader creates the loader selected by cfg.Kind.
func NewLoader(cfg LoaderConfig) (Loader, error) {
	switch cfg.Kind {
	case "", "http":
		return NewHTTPLoader(cfg.Timeout), nil
	case "chrome":
		return &ChromeLoader{Timeout: cfg.Timeout, RemoteURL: cfg.RemoteURL}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}

// MaxBodySize caps the HTML read by HTTPLoader.
const MaxBodySize = 10 << 20

// HTTPLoader fetches raw HTML with net/http. Scripts do not run.
type HTTPLoader struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPLoader creates an HTTPLoader with the given timeout.
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLoader{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "devchat/1.0",
	}
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, url string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTMLContentType(ct) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Snapshot{URL: resp.Request.URL.String(), HTML: string(body)}, nil
}

// ChromeLoader renders the page in headless Chrome so script-built DOM is
// captured.
type ChromeLoader struct {
	Timeout   time.Duration
	RemoteURL string
}

// Load implements Loader.
func (l *ChromeLoader) Load(ctx context.Context, url string) (*Snapshot, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, l.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var location, outer string
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	return &Snapshot{URL: location, HTML: outer}, nil
}

func isHTMLContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
