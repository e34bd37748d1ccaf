package bookingmail

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p, div, br, tr, li, h1, h2, h3, h4, h5, h6, table, section, article, header, footer"

// TextFromHTML flattens an HTML email body to plain text with one line per
// block element, ready for Parse.
func TextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("bookingmail.TextFromHTML: %w", err)
	}

	doc.Find("script, style, head, noscript").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
