package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/example/agencybot/internal/config"
	"github.com/example/agencybot/internal/logging"
	"github.com/example/agencybot/internal/stealth"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Browser wraps one launched Chromium instance. One Browser serves exactly one
// submission attempt; it is never shared between concurrent attempts.
type Browser struct {
	Rod *rod.Browser
	cfg *config.Config
	l   *launcher.Launcher
	log *logging.Logger
}

func New(cfg *config.Config) (*Browser, error) {
	log := logging.New(cfg.Logging.Level).With("module", "browser")

	// Leakless disabled to avoid AV false positives on Windows hosts.
	l := launcher.New().
		Leakless(false).
		Headless(cfg.Browser.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if cfg.Browser.Proxy.Server != "" {
		l = l.Proxy(cfg.Browser.Proxy.Server)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	rb := rod.New().ControlURL(url)
	if err := rb.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	rb = rb.MustIgnoreCertErrors(true)

	if cfg.Browser.Proxy.Username != "" {
		go func() { _ = rb.HandleAuth(cfg.Browser.Proxy.Username, cfg.Browser.Proxy.Password)() }()
	}

	b := &Browser{Rod: rb, cfg: cfg, l: l, log: log}
	log.Debug("browser launched", "headless", cfg.Browser.Headless, "proxy", cfg.Browser.Proxy.Server != "")
	return b, nil
}

// NewPage opens a page with the configured fingerprint applied before any site
// script runs.
func (b *Browser) NewPage() (*rod.Page, error) {
	p, err := b.Rod.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	ua := b.cfg.Browser.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	platform := "Win32"
	if strings.Contains(ua, "Macintosh") {
		platform = "MacIntel"
	} else if strings.Contains(ua, "Linux") {
		platform = "Linux x86_64"
	}

	if err := (proto.EmulationSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: b.cfg.Browser.Locale,
		Platform:       platform,
	}).Call(p); err != nil {
		return nil, err
	}
	w := b.cfg.Browser.Viewport.Width
	h := b.cfg.Browser.Viewport.Height
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		return nil, err
	}
	if b.cfg.Browser.Timezone != "" {
		_ = proto.EmulationSetTimezoneOverride{TimezoneID: b.cfg.Browser.Timezone}.Call(p)
	}
	if _, err := p.EvalOnNewDocument(stealth.Script(w, h, platform)); err != nil {
		return nil, err
	}
	return p, nil
}

// BlockHeavyAssets aborts requests for images, media, fonts and stylesheets.
// Field discovery is DOM based, so dropping the visual payload is safe and cuts
// page weight on image-heavy agency portfolios dramatically. The returned stop
// function must be called before the page closes.
func (b *Browser) BlockHeavyAssets(p *rod.Page) func() {
	router := p.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeMedia,
			proto.NetworkResourceTypeFont,
			proto.NetworkResourceTypeStylesheet:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	go router.Run()
	return func() { _ = router.Stop() }
}

func (b *Browser) Close() {
	if b.Rod != nil {
		_ = b.Rod.Close()
	}
	if b.l != nil {
		b.l.Kill()
	}
}

// NavigateDOMReady navigates and waits only for DOMContentLoaded, not the full
// load event; blocked assets would keep onload pending forever.
func NavigateDOMReady(p *rod.Page, url string, timeout time.Duration) error {
	p = p.Timeout(timeout)
	wait := p.WaitEvent(&proto.PageDomContentEventFired{})
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	if err := p.GetContext().Err(); err != nil {
		return fmt.Errorf("navigation to %s timed out after %s", url, timeout)
	}
	return nil
}

// Screenshot captures the full page into dir and returns the file path.
func Screenshot(p *rod.Page, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	bts, err := p.Screenshot(true, &proto.PageCaptureScreenshot{})
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", name, time.Now().Unix()))
	if err := os.WriteFile(path, bts, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
