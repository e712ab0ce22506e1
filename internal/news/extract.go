package news

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractBody recovers readable paragraph text from an article page.
// Boilerplate containers are stripped and short fragments skipped; the
// result is capped at maxChars on a word boundary.
func ExtractBody(page []byte, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing article page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside, form, noscript, iframe").Remove()

	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}

	var parts []string
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) >= 40 {
			parts = append(parts, text)
		}
	})

	body := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	return truncateAtWord(body, maxChars), nil
}

// StripTags flattens an HTML fragment to its text content. Feed
// descriptions arrive as markup.
func StripTags(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateAtWord(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut]
}
