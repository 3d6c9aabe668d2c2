// Package extract parses HTML bodies into links, title and visible text using goquery.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
)

// Extractor implements crawler.LinkExtractor.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the href of every anchor that has a non-empty one, in
// document order and with repeats kept, plus the page title and body text.
func (Extractor) Extract(body []byte) (crawler.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Document{}, fmt.Errorf("parse html: %w", err)
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})

	return crawler.Document{
		Links: links,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  visibleText(doc),
	}, nil
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").First().Clone()
	body.Find("script,style,noscript,template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}
