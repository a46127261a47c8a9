package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/leonardcser/hostcache/internal/driver"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 1 * 1024 * 1024 // 1MB
	maxLinks        = 50
)

// Cache path roots. Fetches are grouped by host so a whole site can be
// invalidated at once.
var (
	RootPath   = []string{"web"}
	fetchRoot  = []string{"web", "fetch"}
	searchRoot = []string{"web", "search"}
)

// FetchPath is the cache subtree holding every page fetched from host.
func FetchPath(host string) []string {
	return append(append([]string(nil), fetchRoot...), strings.ToLower(host))
}

type PageSummary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
	Links       []string `json:"links"`
}

type Fetcher struct {
	c     *colly.Collector
	cache driver.Driver
	ttl   time.Duration
	now   func() time.Time
}

func NewFetcher(cache driver.Driver, ttl time.Duration) *Fetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       1 * time.Second,
	})
	c.SetRequestTimeout(RequestTimeout)
	return &Fetcher{c: c, cache: cache, ttl: ttl, now: time.Now}
}

func (f *Fetcher) cachePath(u *url.URL) []string {
	return append(FetchPath(u.Host), u.String())
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*PageSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, errors.New("url must start with http:// or https://")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	path := f.cachePath(u)
	if e, ok := f.cache.GetData(path); ok {
		var ps PageSummary
		if json.Unmarshal(e.Data, &ps) == nil {
			return &ps, nil
		}
	}

	body, finalURL, contentType, err := f.visit(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	ps, err := summarize(body, finalURL, contentType)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(ps); err == nil {
		_ = f.cache.StoreData(path, b, f.now().Add(f.ttl))
	}
	return ps, nil
}

// visit downloads rawURL on a per-call clone so callbacks never pile up on
// the shared collector.
func (f *Fetcher) visit(ctx context.Context, rawURL string) ([]byte, string, string, error) {
	c := f.c.Clone()
	c.Context = ctx
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", NextUserAgent())
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var body []byte
	var finalURL, contentType string
	c.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		finalURL = r.Request.URL.String()
		body = append([]byte(nil), r.Body...)
		contentType = r.Headers.Get("Content-Type")
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, "", "", err
	}
	if ctx.Err() != nil {
		return nil, "", "", ctx.Err()
	}
	if len(body) == 0 {
		return nil, "", "", errors.New("empty response body")
	}
	return body, finalURL, contentType, nil
}

// summarize turns a fetched body into a PageSummary. HTML is reduced to
// markdown; other text types are returned as-is.
func summarize(body []byte, finalURL, contentType string) (*PageSummary, error) {
	if len(body) > MaxResponseSize {
		body = append(body[:MaxResponseSize:MaxResponseSize], []byte("... [response trimmed due to size]")...)
	}

	lowerCT := strings.ToLower(contentType)
	if !strings.HasPrefix(lowerCT, "text/") {
		return nil, errors.New("unsupported content type: binary files like images or PDFs are not supported")
	}
	ps := &PageSummary{URL: finalURL}
	if !strings.Contains(lowerCT, "text/html") {
		ps.Text = string(body)
		return ps, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, iframe, object, embed, img, video, picture, svg, canvas, audio, source, track, map, area, form, label, input, button, select, textarea, progress, ins, applet").Remove()

	ps.Title = strings.TrimSpace(doc.Find("head > title").First().Text())
	ps.Description = strings.TrimSpace(doc.Find("meta[name=description]").AttrOr("content", ""))
	plainText := singleLine(doc.Find("body").Text())
	ps.Links = extractLinks(doc, finalURL)

	// Links are already captured; the rest is page chrome.
	doc.Find("a").Remove()
	doc.Find("header, footer, aside").Remove()

	htmlStr, err := doc.Html()
	if err != nil {
		return nil, err
	}
	if markdown, err := htmltomarkdown.ConvertString(htmlStr); err == nil {
		ps.Text = markdown
	} else {
		ps.Text = plainText
	}
	return ps, nil
}

// extractLinks resolves anchors against base, drops fragments and
// non-navigable schemes, dedupes, and keeps at most maxLinks sorted entries.
func extractLinks(doc *goquery.Document, base string) []string {
	baseURL, _ := url.Parse(base)
	set := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() && baseURL != nil {
			u = baseURL.ResolveReference(u)
		}
		switch u.Scheme {
		case "", "javascript", "mailto", "tel":
			return
		}
		u.Fragment = ""
		set[u.String()] = struct{}{}
	})

	links := make([]string, 0, len(set))
	for l := range set {
		links = append(links, l)
	}
	sort.Strings(links)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links
}
