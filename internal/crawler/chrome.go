package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/nery-alan/vivareal-market-research/config"
	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// DefaultRenderWait is how long a page is given to run its scripts
const DefaultRenderWait = 4 * time.Second

// ChromeFetcher renders pages in a headless Chrome. The browser is started
// on the first fetch and shared by later ones until Close.
type ChromeFetcher struct {
	execPath   string
	renderWait time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewChromeFetcher creates a headless Chrome fetcher. An empty execPath
// lets chromedp find the browser.
func NewChromeFetcher(execPath string, renderWait time.Duration) *ChromeFetcher {
	return &ChromeFetcher{
		execPath:   execPath,
		renderWait: renderWait,
	}
}

// Name returns the engine name
func (f *ChromeFetcher) Name() string {
	return config.EngineChrome
}

func (f *ChromeFetcher) browser() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCtx != nil {
		return f.browserCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.UserAgent(helpers.RandomUserAgent()),
		chromedp.WindowSize(1280, 900),
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	f.browserCtx = browserCtx
	f.cancelBrowser = cancelBrowser
	f.cancelAlloc = cancelAlloc
	return browserCtx
}

// Fetch navigates to url in a new tab and returns the rendered document
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browser())
	defer cancelTab()

	// abandon the tab when the caller gives up
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.renderWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.NewNetwork(config.EngineChrome, "render failed", err)
	}
	return &Page{URL: url, HTML: html}, nil
}

// Close shuts the browser down
func (f *ChromeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelBrowser != nil {
		f.cancelBrowser()
		f.cancelAlloc()
		f.browserCtx = nil
		f.cancelBrowser = nil
		f.cancelAlloc = nil
	}
	return nil
}
