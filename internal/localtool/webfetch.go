package localtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const webfetchDescription = `Fetches a URL and returns its content as Markdown (for HTML pages) or
raw text (for everything else).

Usage:
- url is required and must be http(s)
- Large pages are truncated past 50000 characters`

const (
	webfetchTimeout  = 20 * time.Second
	maxWebfetchChars = 50000
)

// WebFetchTool fetches a URL and converts HTML to Markdown.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: webfetchTimeout}}
}

func (t *WebFetchTool) Name() string              { return "webfetch" }
func (t *WebFetchTool) Description() string       { return webfetchDescription }
func (t *WebFetchTool) ConfirmationRequired() bool { return true }
func (t *WebFetchTool) UndoSupported() bool        { return false }

func (t *WebFetchTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	rawURL, err := stringArg(args, "url")
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("url must be http or https: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: http %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebfetchChars*4))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	var out string
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "html") {
		out, err = htmlToMarkdown(string(body))
		if err != nil {
			out = string(body)
		}
	} else {
		out = string(body)
	}

	if len(out) > maxWebfetchChars {
		out = out[:maxWebfetchChars] + "\n[truncated]"
	}
	return out, nil
}

// htmlToMarkdown strips scripts/styles with goquery before handing the
// document to the Markdown converter, so fetched pages don't dump raw JS
// into the model's context.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	cleaned, err := doc.Html()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(cleaned)
}
