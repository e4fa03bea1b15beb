package resolver

import (
	"net/url"
	"strings"
)

// LinkCandidate is one anchor pulled off an agency page. Hrefs may be relative;
// scoring resolves them against the site base first.
type LinkCandidate struct {
	Href string
	Text string
}

// rosterPaths mark individual model profile pages (e.g. /women/main/123-jane),
// which look keyword-rich but never lead to an application form.
var rosterPaths = []string{"/women/", "/men/", "/mainboard/", "/talent/"}

// ScoreApplicationLink picks the most likely "apply to become a model" link.
// Every candidate gets a keyword score; the best strictly-positive score wins,
// ties keep the earlier winner, and no winner means the base URL comes back
// unchanged so the caller falls through to path probing. Deterministic for a
// given candidate set.
func ScoreApplicationLink(baseURL string, candidates []LinkCandidate) string {
	best := baseURL
	bestScore := 0

	for _, c := range candidates {
		href := resolveHref(baseURL, c.Href)
		if href == "" {
			continue
		}
		score := scoreCandidate(href, c.Text)
		if score > bestScore {
			bestScore = score
			best = href
		}
	}
	return best
}

func scoreCandidate(href, text string) int {
	text = strings.ToLower(text)
	hrefLower := strings.ToLower(href)
	score := 0

	// High priority phrases in visible text. First match wins so "become a
	// model" does not double count through "apply".
	switch {
	case strings.Contains(text, "become a model"):
		score += 10
	case strings.Contains(text, "be a model"):
		score += 10
	case strings.Contains(text, "apply"):
		score += 8
	case strings.Contains(text, "scout"):
		score += 8
	case strings.Contains(text, "join") && strings.Contains(text, "us"):
		score += 5
	case strings.Contains(text, "new faces"):
		score += 5
	}

	// Keywords in the URL itself.
	if strings.Contains(hrefLower, "apply") {
		score += 5
	}
	if strings.Contains(hrefLower, "become") {
		score += 5
	}
	if strings.Contains(hrefLower, "scout") {
		score += 5
	}
	if strings.Contains(hrefLower, "join") {
		score += 3
	}
	if strings.Contains(hrefLower, "new-faces") || strings.Contains(hrefLower, "newfaces") {
		score += 3
	}

	// Penalties.
	if strings.Contains(hrefLower, "news") {
		score -= 10
	}
	if strings.Contains(hrefLower, "login") {
		score -= 10
	}
	if strings.Contains(hrefLower, "contact") {
		score -= 5 // contact is a fallback, a real apply link is better
	}
	if strings.Contains(hrefLower, "javascript") {
		score -= 20
	}
	if strings.Contains(hrefLower, "mailto:") {
		score -= 5
	}
	for _, p := range rosterPaths {
		if strings.Contains(hrefLower, p) {
			score -= 5
			break
		}
	}
	return score
}

func resolveHref(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "javascript") || strings.HasPrefix(href, "mailto:") {
		// Kept as-is so the penalty rules still see them.
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
