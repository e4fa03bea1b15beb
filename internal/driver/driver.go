package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/example/agencybot/internal/browser"
	"github.com/example/agencybot/internal/config"
	"github.com/example/agencybot/internal/formfill"
	"github.com/example/agencybot/internal/logging"
	"github.com/example/agencybot/internal/models"
	"github.com/example/agencybot/internal/resolver"
	"github.com/example/agencybot/internal/stealth"
)

// Result is what one automation attempt reports back to the orchestrator.
type Result struct {
	Applied        bool
	ScreenshotPath string
	Reason         string
	// ResolvedURL is set when the attempt had to discover the application
	// page itself, so the orchestrator can cache it on the agency.
	ResolvedURL string
}

// Driver runs one application attempt in an isolated browser. Browsers are
// never shared across attempts; each Run launches and tears down its own.
type Driver struct {
	cfg *config.Config
	res *resolver.Resolver
	log *logging.Logger
}

func New(cfg *config.Config, res *resolver.Resolver) *Driver {
	return &Driver{cfg: cfg, res: res, log: logging.New(cfg.Logging.Level).With("module", "driver")}
}

// Run navigates to the agency's application page, fills the form, uploads the
// photo and captures the evidence screenshot. Any failure anywhere in the
// sequence, panics included, comes back as a failed Result; the browser is
// released on every path.
func (d *Driver) Run(ctx context.Context, jobID string, target models.AgencyTarget, profile models.ApplicantProfile) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("attempt panicked", "job", jobID, "agency", target.WebsiteURL, "panic", r)
			res = Result{Reason: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	br, err := browser.New(d.cfg)
	if err != nil {
		return Result{Reason: fmt.Sprintf("browser launch: %v", err)}
	}
	defer br.Close()

	p, err := br.NewPage()
	if err != nil {
		return Result{Reason: fmt.Sprintf("new page: %v", err)}
	}
	defer p.Close()

	if d.cfg.Automation.BlockHeavyAssets {
		stop := br.BlockHeavyAssets(p)
		defer stop()
	}

	navTimeout := time.Duration(d.cfg.Automation.NavTimeoutSec) * time.Second

	applicationURL := target.ApplicationURL
	if applicationURL == "" {
		// Best effort; the worst outcome is attempting the home page.
		applicationURL = d.res.Resolve(ctx, p, target.WebsiteURL)
		res.ResolvedURL = applicationURL
		d.log.Info("application url resolved", "job", jobID, "url", applicationURL)
	}

	if err := browser.NavigateDOMReady(p, applicationURL, navTimeout); err != nil {
		d.log.Warn("navigation failed", "job", jobID, "url", applicationURL, "err", err)
		res.Reason = err.Error()
		return res
	}
	stealth.SleepRandom(d.cfg.Automation.MinDelayMs, d.cfg.Automation.MaxDelayMs)

	filler := formfill.NewFiller(time.Duration(d.cfg.Automation.FieldTimeoutMs)*time.Millisecond, d.log)
	filler.FillForm(p, profile)
	filler.UploadPhoto(p, profile.PhotoPaths, d.cfg.Automation.MaxPhotoKB)

	if d.cfg.Automation.ClickSubmit {
		if err := filler.ClickSubmit(p); err != nil {
			d.log.Warn("submit click failed", "job", jobID, "err", err)
		}
	}

	// Evidence capture is the audit trail and happens regardless of how the
	// fill went.
	shot, err := browser.Screenshot(p, d.cfg.Automation.ScreenshotDir, "proof-"+jobID)
	if err != nil {
		res.Reason = fmt.Sprintf("evidence screenshot: %v", err)
		return res
	}

	res.Applied = true
	res.ScreenshotPath = shot
	return res
}
