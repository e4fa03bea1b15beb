package resolver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/agencybot/internal/logging"
)

// commonPaths are conventional application page locations, most specific
// first. Contact pages are last resort.
var commonPaths = []string{
	"/apply", "/application", "/become-a-model", "/be-a-model",
	"/scouting", "/new-faces", "/join", "/representation",
	"/contact", "/about/contact",
}

type Prober struct {
	client          *http.Client
	minContentBytes int
	log             *logging.Logger
}

func NewProber(timeout time.Duration, minContentBytes int, log *logging.Logger) *Prober {
	if minContentBytes <= 0 {
		minContentBytes = 1000
	}
	return &Prober{
		client:          &http.Client{Timeout: timeout},
		minContentBytes: minContentBytes,
		log:             log.With("module", "prober"),
	}
}

// ProbeCommonPaths tries conventional suffixes against the agency domain and
// returns the first page that looks real. Misses return the base URL
// unchanged; one unrecognizable site must never fail a batch.
func (pr *Prober) ProbeCommonPaths(ctx context.Context, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	for _, path := range commonPaths {
		candidate := base + path
		ok, err := pr.probe(ctx, candidate)
		if err != nil {
			pr.log.Debug("probe failed", "url", candidate, "err", err)
			continue
		}
		if ok {
			pr.log.Info("probe hit", "url", candidate)
			return candidate
		}
	}
	return baseURL
}

// probe accepts a URL when the response is non-error, the title does not
// announce a 404, and the body is big enough to not be a soft-404 stub.
func (pr *Prober) probe(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agencybot/1.0)")

	resp, err := pr.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return false, err
	}
	if len(body) < pr.minContentBytes {
		return false, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return false, err
	}
	title := strings.ToLower(doc.Find("title").Text())
	if strings.Contains(title, "404") || strings.Contains(title, "not found") || strings.Contains(title, "error") {
		return false, nil
	}
	return true, nil
}
