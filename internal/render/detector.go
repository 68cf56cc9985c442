package render

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector inspects already-fetched HTML for signals that the listing is
// assembled client-side and a render pass is warranted.
type Detector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewDetector constructs a Detector with the configured thresholds.
// Keywords are matched case-insensitively; selectors name containers that a
// server-rendered listing would populate.
func NewDetector(minBytes int, selectors, keywords []string) *Detector {
	lowerKeywords := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	return &Detector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowerKeywords,
	}
}

// NeedsRender reports whether the body looks like a JS shell: suspiciously
// small, carrying framework/loading markers, or with known listing
// containers present but empty.
func (d *Detector) NeedsRender(body []byte) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(body):
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.emptySelectors(body)
	}
}

func (d *Detector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *Detector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if len(kw) == 0 {
			continue
		}
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) emptySelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		found := doc.Find(sel)
		if found.Length() > 0 && strings.TrimSpace(found.Text()) == "" {
			return true
		}
	}
	return false
}
