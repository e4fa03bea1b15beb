package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"github.com/example/agencybot/internal/browser"
	"github.com/example/agencybot/internal/logging"
)

// Resolver locates the application entry point of an agency website: score the
// anchors on the home page, and when nothing clears the bar, probe
// conventional paths over plain HTTP.
type Resolver struct {
	prober     *Prober
	navTimeout time.Duration
	log        *logging.Logger
}

func New(prober *Prober, navTimeout time.Duration, log *logging.Logger) *Resolver {
	return &Resolver{prober: prober, navTimeout: navTimeout, log: log.With("module", "resolver")}
}

// Resolve is best effort and never fails: the worst outcome is the home URL
// itself, which the driver will still attempt and capture on the evidence
// screenshot.
func (r *Resolver) Resolve(ctx context.Context, p *rod.Page, websiteURL string) string {
	if err := browser.NavigateDOMReady(p, websiteURL, r.navTimeout); err != nil {
		r.log.Warn("home page navigation failed, keeping base url", "url", websiteURL, "err", err)
		return websiteURL
	}

	candidates := r.collectCandidates(p)
	r.log.Debug("link candidates collected", "url", websiteURL, "count", len(candidates))

	resolved := ScoreApplicationLink(websiteURL, candidates)
	if resolved != websiteURL {
		r.log.Info("application link scored", "url", websiteURL, "resolved", resolved)
		return resolved
	}

	// No confident link; fall back to probing conventional paths.
	return r.prober.ProbeCommonPaths(ctx, websiteURL)
}

// collectCandidates walks visible anchors on the live page. When element
// iteration fails (heavy JS sites detaching nodes mid-walk), it falls back to
// parsing the rendered HTML.
func (r *Resolver) collectCandidates(p *rod.Page) []LinkCandidate {
	var out []LinkCandidate

	// Strategy 1: live elements, visibility-filtered.
	els, err := p.Timeout(10 * time.Second).Elements("a")
	if err == nil {
		for _, el := range els {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
			href, err := el.Attribute("href")
			if err != nil || href == nil || *href == "" {
				continue
			}
			text, _ := el.Text()
			out = append(out, LinkCandidate{Href: *href, Text: text})
		}
		if len(out) > 0 {
			return out
		}
	}

	// Strategy 2: parse the rendered HTML snapshot.
	html, err := p.HTML()
	if err != nil {
		r.log.Warn("candidate collection failed", "err", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		out = append(out, LinkCandidate{Href: href, Text: strings.TrimSpace(sel.Text())})
	})
	return out
}
