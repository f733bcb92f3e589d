// Package browser owns the single headless Chrome used for scraping. Every
// page load goes through one paced FIFO queue.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/ratelimit"
	"github.com/deusflow/newscurator/internal/scraper"
)

// IPhoneUserAgent is sent with every page load; the mobile layouts of most
// news indexes are simpler to extract.
const IPhoneUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

const (
	viewportWidth  = 375
	viewportHeight = 667
)

var ErrSessionClosed = errors.New("browser session closed")

type Options struct {
	ChromePath     string
	NoSandbox      bool
	UserAgent      string
	RequestDelay   time.Duration
	DefaultTimeout time.Duration
	// IdleWait bounds how long a render waits for the networkIdle event.
	IdleWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = IPhoneUserAgent
	}
	if o.RequestDelay <= 0 {
		o.RequestDelay = time.Second
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 30 * time.Second
	}
	if o.IdleWait <= 0 {
		o.IdleWait = 5 * time.Second
	}
	return o
}

// Session lazily starts one browser process and closes it on Close.
type Session struct {
	opts  Options
	queue *ratelimit.Queue

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closed        bool
}

func NewSession(opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		opts:  opts,
		queue: ratelimit.NewQueue(opts.RequestDelay),
	}
}

// Started reports whether the browser process has been launched.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browserCtx != nil
}

func (s *Session) browser() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.browserCtx != nil {
		return s.browserCtx, nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(s.opts.UserAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	if s.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ChromePath))
	}
	if s.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// start the process now so launch failures surface here
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	s.browserCtx = browserCtx
	s.cancelBrowser = cancelBrowser
	s.cancelAlloc = cancelAlloc
	logger.Info("headless browser started")
	return browserCtx, nil
}

// WithPage queues fn to run against a fresh tab. The tab is closed when fn
// returns. timeout bounds the whole page operation; zero uses the session
// default.
func WithPage[T any](ctx context.Context, s *Session, timeout time.Duration, fn func(tab context.Context) (T, error)) (T, error) {
	var result T
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}

	err := s.queue.Do(ctx, func(qctx context.Context) error {
		b, err := s.browser()
		if err != nil {
			return err
		}

		tabCtx, cancelTab := chromedp.NewContext(b)
		defer cancelTab()
		if err := chromedp.Run(tabCtx); err != nil {
			return fmt.Errorf("failed to open tab: %w", err)
		}

		runCtx, cancel := context.WithTimeout(tabCtx, timeout)
		defer cancel()
		stop := context.AfterFunc(qctx, cancel)
		defer stop()

		result, err = fn(runCtx)
		return err
	})
	if errors.Is(err, ratelimit.ErrQueueClosed) {
		err = ErrSessionClosed
	}
	return result, err
}

// Render loads req.URL in a mobile-emulated tab and returns the final
// location and document HTML.
func (s *Session) Render(ctx context.Context, req scraper.RenderRequest) (*scraper.Page, error) {
	return WithPage(ctx, s, req.Timeout, func(tab context.Context) (*scraper.Page, error) {
		idle := make(chan struct{})
		var once sync.Once
		if req.WaitIdle {
			chromedp.ListenTarget(tab, func(ev interface{}) {
				if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
					once.Do(func() { close(idle) })
				}
			})
		}

		err := chromedp.Run(tab,
			chromedp.EmulateViewport(viewportWidth, viewportHeight, chromedp.EmulateMobile, chromedp.EmulateTouch, chromedp.EmulateScale(2)),
			page.SetLifecycleEventsEnabled(true),
			chromedp.Navigate(req.URL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to navigate to %s: %w", req.URL, err)
		}

		if req.WaitIdle {
			select {
			case <-idle:
			case <-time.After(s.opts.IdleWait):
				logger.Debug("network did not go idle, continuing", "url", req.URL)
			case <-tab.Done():
				return nil, tab.Err()
			}
		}

		var actions []chromedp.Action
		if req.Settle > 0 {
			actions = append(actions, chromedp.Sleep(req.Settle))
		}
		p := &scraper.Page{}
		actions = append(actions,
			chromedp.Location(&p.URL),
			chromedp.OuterHTML("html", &p.HTML, chromedp.ByQuery),
		)
		if err := chromedp.Run(tab, actions...); err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", req.URL, err)
		}
		return p, nil
	})
}

// Close stops the queue and shuts the browser down. It is safe to call
// more than once and on a session that never started a browser.
func (s *Session) Close() error {
	s.queue.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.browserCtx == nil {
		return nil
	}

	err := chromedp.Cancel(s.browserCtx)
	s.cancelBrowser()
	s.cancelAlloc()
	s.browserCtx = nil
	logger.Info("headless browser closed")
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// GetStats exposes the page queue counters.
func (s *Session) GetStats() map[string]interface{} {
	stats := s.queue.GetStats()
	stats["browser_started"] = s.Started()
	return stats
}
