package ingestion

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// moltbookPagePath is the rendered page scraped first.
const moltbookPagePath = "/"

// moltbookProbePaths are conventional API paths tried when the page yields nothing.
var moltbookProbePaths = []string{
	"/api/v1/agents?sort=karma",
	"/api/agents",
	"/api/v1/leaderboard",
	"/api/leaderboard",
}

// agentTriple matches a rendered agent card: a name line, an @handle line,
// a karma count and an optional wallet address.
var agentTriple = regexp.MustCompile(
	`(?m)^[ \t]*([^\n@]{1,48}?)[ \t]*\n\s*@([A-Za-z0-9_]{2,32})\s+(?:[·•|]\s*)?(\d[\d,]*)\s*karma\b(?:\s+(0x[0-9a-fA-F]{40}))?`,
)

// MoltbookAdapter is a best-effort scraper for the Moltbook agent directory.
//
// Strategies in order: embedded structured data (__NEXT_DATA__ or
// application/ld+json), regex triples over the rendered text, then API
// path probes. When every strategy fails the result is empty, not an error.
type MoltbookAdapter struct {
	client *httpclient.Client
	delay  time.Duration
	logger zerolog.Logger
}

// NewMoltbookAdapter creates a Moltbook adapter.
func NewMoltbookAdapter(cfg Config, logger zerolog.Logger) *MoltbookAdapter {
	logger = adapterLogger(logger, domain.SourceMoltbook)
	return &MoltbookAdapter{client: cfg.client(logger), delay: cfg.PageDelay, logger: logger}
}

// Source returns domain.SourceMoltbook.
func (a *MoltbookAdapter) Source() domain.Source {
	return domain.SourceMoltbook
}

// FetchListings runs the fallback chain and stops at the first strategy
// that yields records.
func (a *MoltbookAdapter) FetchListings(ctx context.Context) *FetchResult {
	result := &FetchResult{Source: domain.SourceMoltbook}

	body, err := a.client.GetText(ctx, moltbookPagePath, nil)
	if err != nil {
		a.logger.Debug().Err(err).Msg("page fetch failed, probing api paths")
	} else {
		result.Pages++
		if items, strategy := scrapeAgents(body); len(items) > 0 {
			a.logger.Debug().Str("strategy", strategy).Int("agents", len(items)).Msg("scraped agents")
			return appendItems(result, items)
		}
	}

	for i, path := range moltbookProbePaths {
		if i > 0 || result.Pages > 0 {
			if !sleepCtx(ctx, a.delay) {
				return result
			}
		}

		var payload any
		if err := a.client.GetJSON(ctx, path, nil, &payload); err != nil {
			a.logger.Debug().Err(err).Str("path", path).Msg("api probe failed")
			continue
		}
		result.Pages++
		if items := findAgentRecords(payload); len(items) > 0 {
			a.logger.Debug().Str("strategy", "probe").Str("path", path).Int("agents", len(items)).Msg("scraped agents")
			return appendItems(result, items)
		}
	}

	a.logger.Info().Msg("no agents found by any strategy")
	return result
}

// scrapeAgents applies the structured-data and regex strategies to a page.
func scrapeAgents(page string) ([]map[string]any, string) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, ""
	}

	for _, block := range structuredBlocks(doc) {
		var payload any
		if err := httpclient.DecodeJSON([]byte(block), &payload); err != nil {
			continue
		}
		if items := findAgentRecords(payload); len(items) > 0 {
			return items, "structured"
		}
	}

	if items := matchTriples(visibleText(doc)); len(items) > 0 {
		return items, "regex"
	}
	return nil, ""
}

// structuredBlocks returns the bodies of embedded JSON script tags.
func structuredBlocks(doc *html.Node) []string {
	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			if attr(n, "id") == "__NEXT_DATA__" || strings.EqualFold(attr(n, "type"), "application/ld+json") {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					blocks = append(blocks, n.FirstChild.Data)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks
}

// visibleText renders text nodes one per line, skipping scripts and styles.
func visibleText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

func matchTriples(text string) []map[string]any {
	var items []map[string]any
	for _, m := range agentTriple.FindAllStringSubmatch(text, -1) {
		item := map[string]any{
			"name":   strings.TrimSpace(m[1]),
			"handle": "@" + m[2],
			"karma":  strings.ReplaceAll(m[3], ",", ""),
		}
		if m[4] != "" {
			item["wallet"] = m[4]
		}
		items = append(items, item)
	}
	return items
}

// findAgentRecords returns the largest array of agent-like objects in v.
func findAgentRecords(v any) []map[string]any {
	var best []map[string]any
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case []any:
			var agents []map[string]any
			for _, el := range t {
				m, ok := el.(map[string]any)
				if !ok {
					continue
				}
				if inner, ok := m["item"].(map[string]any); ok {
					m = inner
				}
				if looksLikeAgent(m) {
					agents = append(agents, m)
				}
			}
			if len(agents) > len(best) && len(agents)*2 >= len(t) {
				best = agents
			}
			for _, el := range t {
				walk(el)
			}
		}
	}
	walk(v)
	return best
}

func looksLikeAgent(m map[string]any) bool {
	named := hasKey(m, "name", "username", "display_name", "displayName")
	signal := hasKey(m, "karma", "wallet", "walletAddress", "address", "handle", "username")
	return named && signal
}

func hasKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func appendItems(result *FetchResult, items []map[string]any) *FetchResult {
	for _, item := range items {
		result.Listings = append(result.Listings, domain.NewRawListing(domain.SourceMoltbook, item))
	}
	return result
}

// sleepCtx waits d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
