// Package capture prints certificate HTML to PDF with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

// Portrait paper sizes in inches; Landscape rotates them when printing.
var paperSizes = map[string][2]float64{
	"A4":     {8.27, 11.69},
	"LETTER": {8.5, 11},
}

type Options struct {
	BrowserBin     string
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	DeviceScale    float64
	PaperFormat    string
}

func DefaultOptions() Options {
	return Options{
		Timeout:        30 * time.Second,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		DeviceScale:    2,
		PaperFormat:    "A4",
	}
}

// Capturer owns one lazily launched browser. Each capture runs in its own
// incognito context and page, both closed before Capture returns.
type Capturer struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func New(opts Options, logger *zap.Logger) *Capturer {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = def.ViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = def.ViewportHeight
	}
	if opts.DeviceScale <= 0 {
		opts.DeviceScale = def.DeviceScale
	}
	opts.PaperFormat = strings.ToUpper(opts.PaperFormat)
	if _, ok := paperSizes[opts.PaperFormat]; !ok {
		opts.PaperFormat = def.PaperFormat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{opts: opts, logger: logger}
}

func (c *Capturer) connect() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		return c.browser, nil
	}

	l := launcher.New().Headless(true).NoSandbox(true)
	if c.opts.BrowserBin != "" {
		l = l.Bin(c.opts.BrowserBin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	c.launcher = l
	c.browser = browser
	c.logger.Info("Headless browser launched", zap.String("control_url", u))
	return browser, nil
}

// reset drops a browser that stopped responding so the next capture relaunches.
func (c *Capturer) reset(stale *rod.Browser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != stale {
		return
	}
	_ = c.browser.Close()
	if c.launcher != nil {
		c.launcher.Kill()
	}
	c.browser = nil
	c.launcher = nil
}

// Capture renders html and returns a single landscape page PDF.
func (c *Capturer) Capture(ctx context.Context, html string) ([]byte, error) {
	browser, err := c.connect()
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		c.logger.Warn("Browser unavailable, relaunching on next capture", zap.Error(err))
		c.reset(browser)
		return nil, fmt.Errorf("open browser context: %w", err)
	}
	defer func() {
		if err := incognito.Close(); err != nil {
			c.logger.Warn("Failed to close browser context", zap.Error(err))
		}
	}()

	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Debug("Page already closed", zap.Error(err))
		}
	}()

	pdf, err := c.print(page.Timeout(c.opts.Timeout), html)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("capture timed out after %s: %w", c.opts.Timeout, err)
		}
		return nil, err
	}
	return pdf, nil
}

func (c *Capturer) print(page *rod.Page, html string) ([]byte, error) {
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.opts.ViewportWidth,
		Height:            c.opts.ViewportHeight,
		DeviceScaleFactor: c.opts.DeviceScale,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load: %w", err)
	}
	if err := page.WaitIdle(c.opts.Timeout); err != nil {
		return nil, fmt.Errorf("wait for idle: %w", err)
	}

	size := paperSizes[c.opts.PaperFormat]
	stream, err := page.PDF(&proto.PagePrintToPDF{
		Landscape:       true,
		PrintBackground: true,
		PaperWidth:      gson.Num(size[0]),
		PaperHeight:     gson.Num(size[1]),
		MarginTop:       gson.Num(0),
		MarginBottom:    gson.Num(0),
		MarginLeft:      gson.Num(0),
		MarginRight:     gson.Num(0),
		PageRanges:      "1",
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return pdf, nil
}

// Close shuts the browser down.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	if c.launcher != nil {
		c.launcher.Kill()
	}
	c.browser = nil
	c.launcher = nil
	return err
}
