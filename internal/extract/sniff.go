package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// looksLikeJSON reports whether content starts with a JSON value, after
// optional whitespace.
func looksLikeJSON(content []byte) bool {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// scriptJSONPattern matches inlined assignments like
// `window.__jobs = [...]` or `var jobPostings = {...};`.
var scriptJSONPattern = regexp.MustCompile(`(?s)(?:window\.\w+|var\s+\w+|const\s+\w+)\s*=\s*(\[.*?\]|\{.*?\})\s*;`)

// scanScriptTags walks <script> bodies looking for an inlined job array and
// hands each JSON candidate to decode until one succeeds.
func scanScriptTags(content []byte, decode func(data []byte) bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return
	}
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if text == "" {
			return true
		}
		trimmed := strings.TrimSpace(text)
		if looksLikeJSON([]byte(trimmed)) && decode([]byte(trimmed)) {
			return false
		}
		for _, m := range scriptJSONPattern.FindAllStringSubmatch(text, -1) {
			if decode([]byte(m[1])) {
				return false
			}
		}
		return true
	})
}

// fetchJSON GETs an ATS API endpoint and decodes the response into out.
func fetchJSON(ctx context.Context, client *http.Client, apiURL string, out any) error {
	if client == nil {
		return fmt.Errorf("no http client for api fetch")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("new api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api fetch %s: %w", apiURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api fetch %s: status %d", apiURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read api body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode api body: %w", err)
	}
	return nil
}

// cleanText collapses whitespace and non-breaking spaces.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// absoluteURL resolves href against base, returning "" when unusable.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// isRemote applies the corpus-wide work-mode heuristic.
func isRemote(fields ...string) bool {
	blob := strings.ToLower(strings.Join(fields, " "))
	return strings.Contains(blob, "remote")
}

// parseTimestamp tries the date shapes the supported boards emit: RFC 3339,
// bare dates, and millisecond epochs.
func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 1e11 {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}

// stripMarkup reduces an HTML document to its visible text. Script and
// style bodies are dropped first.
func stripMarkup(content []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return string(content)
	}
	doc.Find("script, style, noscript").Remove()
	return cleanText(doc.Text())
}

// slugFromPath returns the first path segment of a URL, the usual company
// identifier on hosted boards.
func slugFromPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return parts[0]
}
