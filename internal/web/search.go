package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/leonardcser/hostcache/internal/driver"
)

// extractDDGURL extracts the actual URL from DuckDuckGo's redirect URL format
// Input: //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com&rut=...
// Output: https://example.com
func extractDDGURL(ddgURL string) string {
	// Handle protocol-relative URLs
	if strings.HasPrefix(ddgURL, "//duckduckgo.com/l/") {
		ddgURL = "https:" + ddgURL
	}

	u, err := url.Parse(ddgURL)
	if err != nil {
		return ddgURL // Return original if parsing fails
	}

	// Extract the uddg parameter which contains the actual URL
	uddg := u.Query().Get("uddg")
	if uddg == "" {
		return ddgURL // Return original if no uddg parameter
	}

	// URL decode the actual URL
	actualURL, err := url.QueryUnescape(uddg)
	if err != nil {
		return ddgURL // Return original if decoding fails
	}

	return actualURL
}

type SearchResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

const searchEndpoint = "https://html.duckduckgo.com/html/"

const (
	defaultSearchResults = 10
	maxSearchResults     = 20
)

type Searcher struct {
	client   *http.Client
	cache    driver.Driver
	ttl      time.Duration
	endpoint string
	now      func() time.Time
}

func NewSearcher(cache driver.Driver, ttl time.Duration) *Searcher {
	return &Searcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cache:    cache,
		ttl:      ttl,
		endpoint: searchEndpoint,
		now:      time.Now,
	}
}

// SearchPath is the cache subtree holding results for query.
func SearchPath(query string) []string {
	return append(append([]string(nil), searchRoot...), strings.ToLower(strings.TrimSpace(query)))
}

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = defaultSearchResults
	}
	path := SearchPath(q)
	if e, ok := s.cache.GetData(path); ok {
		var cached []SearchResult
		if json.Unmarshal(e.Data, &cached) == nil {
			return firstN(cached, limit), nil
		}
	}
	results, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	// The cached list is never cut to limit, so a later larger limit still
	// sees every parsed result.
	if b, err := json.Marshal(results); err == nil {
		_ = s.cache.StoreData(path, b, s.now().Add(s.ttl))
	}
	return firstN(results, limit), nil
}

// query fetches up to maxSearchResults results for q from the endpoint.
func (s *Searcher) query(ctx context.Context, q string) ([]SearchResult, error) {
	values := url.Values{"q": {q}, "kl": {"us-en"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", NextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("duckduckgo status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, maxSearchResults)
	// Use concrete selectors from the DuckDuckGo HTML endpoint structure.
	doc.Find("div.result.results_links.results_links_deep.web-result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		a := s.Find("a.result__a").First()
		link := strings.TrimSpace(a.AttrOr("href", ""))
		title := singleLine(a.Text())
		desc := singleLine(s.Find("a.result__snippet").First().Text())
		if title != "" && link != "" {
			// Extract the actual URL from DuckDuckGo's redirect URL
			actualLink := extractDDGURL(link)
			results = append(results, SearchResult{Title: title, Description: desc, Link: actualLink})
		}
		return len(results) < maxSearchResults
	})

	if len(results) == 0 {
		// Fallback: scan anchor list and nearest snippet up the tree
		doc.Find("a.result__a").EachWithBreak(func(_ int, n *goquery.Selection) bool {
			if len(results) >= maxSearchResults {
				return false
			}
			title := singleLine(n.Text())
			link := strings.TrimSpace(n.AttrOr("href", ""))
			desc := singleLine(n.Parents().Find("a.result__snippet").First().Text())
			// Extract the actual URL from DuckDuckGo's redirect URL
			actualLink := extractDDGURL(link)
			results = append(results, SearchResult{Title: title, Description: desc, Link: actualLink})
			return true
		})
	}
	return results, nil
}

func firstN(results []SearchResult, n int) []SearchResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}

// singleLine trims and collapses internal whitespace/newlines to single spaces.
func singleLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
