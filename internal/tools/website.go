package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"

	"github.com/edgard/bymbot/internal/llm"
	"github.com/edgard/bymbot/internal/logger"
)

const (
	maxPageBytes        = 2 << 20
	defaultWebsiteChars = 2000
	browserUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Page is the readable content of a web page.
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
}

// String renders the page for the model.
func (p *Page) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "标题：%s\n", p.Title)
	if p.Description != "" {
		fmt.Fprintf(&sb, "简介：%s\n", p.Description)
	}
	fmt.Fprintf(&sb, "链接：%s\n正文：%s", p.URL, p.Text)
	return sb.String()
}

// WebsiteTool reads a web page and returns its main text.
type WebsiteTool struct {
	client   *http.Client
	maxChars int
}

func (t *WebsiteTool) Name() string { return "website" }

func (t *WebsiteTool) Description() string {
	return "Useful when you want to read the content of a web page by its url"
}

func (t *WebsiteTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"url": llm.String("the http or https url of the page"),
	}, "url")
}

func (t *WebsiteTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	page, err := t.Fetch(ctx, argString(args, "url"))
	if err != nil {
		return "", err
	}
	return page.String(), nil
}

// Fetch downloads rawURL and extracts its title, description and body text.
func (t *WebsiteTool) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type: %s", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return t.parse(u.String(), body)
}

func (t *WebsiteTool) parse(pageURL string, body []byte) (*Page, error) {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("failed to parse OpenGraph: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	page := &Page{URL: pageURL, Title: og.Title, Description: og.Description}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if page.Description == "" {
		if desc, ok := doc.Find("meta[name='description']").First().Attr("content"); ok {
			page.Description = strings.TrimSpace(desc)
		}
	}

	doc.Find("script, style, noscript, nav, footer, header, iframe, svg").Remove()
	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	text := strings.Join(strings.Fields(root.Text()), " ")
	if text == "" && page.Title == "" {
		return nil, errors.New("page has no readable content")
	}

	limit := t.maxChars
	if limit <= 0 {
		limit = defaultWebsiteChars
	}
	page.Text = logger.Truncate(text, limit)
	return page, nil
}
