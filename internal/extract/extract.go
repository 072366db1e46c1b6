// Package extract turns raw article HTML into readable plain text.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// boilerplate lists selectors removed before readability scoring. Tables and
// comment threads are dropped along with navigation chrome.
var boilerplate = []string{
	"head, script, style, noscript, template, title",
	"nav, header, footer, aside, form, button",
	"iframe, embed, object, video, audio, canvas, svg",
	"table",
	"[class*='comment'], [id*='comment'], [class*='discussion'], [id*='discussion']",
	"[class*='share'], [id*='share'], [class*='social'], [id*='social']",
	"[role='navigation'], [role='banner'], [role='contentinfo'], [aria-hidden='true']",
}

const readableFloor = 200

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v\r\x{00a0}]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// Text extracts the main readable content of rawHTML. pageURL may be nil.
// It never fails; unparseable input degrades to tag-stripped text.
func Text(rawHTML string, pageURL *url.URL) string {
	trimmed := strings.TrimSpace(rawHTML)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "<") {
		return Normalize(trimmed)
	}

	cleaned := trimmed
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed)); err == nil {
		for _, sel := range boilerplate {
			doc.Find(sel).Remove()
		}
		if html, err := doc.Html(); err == nil && html != "" {
			cleaned = html
		}
	}

	// Readability sometimes keeps only a title or byline; fall back to the
	// structural pass when that yields more text.
	text := readable(cleaned, pageURL)
	if len(text) < readableFloor {
		if alt := paragraphs(cleaned); len(alt) > len(text) {
			text = alt
		}
	}
	if text != "" {
		return text
	}
	return Normalize(bluemonday.StrictPolicy().Sanitize(cleaned))
}

func readable(html string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return Normalize(buf.String())
}

func paragraphs(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return Normalize(strings.Join(parts, "\n\n"))
}

// Normalize collapses runs of inline whitespace and limits blank lines to one.
func Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
