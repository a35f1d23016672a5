// Package parse extracts topic records from TripAdvisor forum search pages.
//
// The page schema is an external contract that may silently change; every
// selector lives in the fieldSelectors table so an adaptation is a data
// change, not new branching logic.
package parse

import (
	"bytes"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrStructureMissing is returned when the page carries none of the expected
// result-row structure, e.g. an interstitial or a redesigned page.
var ErrStructureMissing = errors.New("forum search result structure not found")

// Topic is one extracted row. Title and URL are mandatory; the remaining
// fields default when their cells are absent.
type Topic struct {
	Title        string
	Author       string
	ReplyCount   int
	LastActivity string
	URL          string
}

// Page is the full yield of one results page.
type Page struct {
	Topics  []Topic
	NextURL string
}

// Selectors for the repeating row pattern and its sub-fields. Rows are
// topicrow/postrow <tr>s inside the forumsearchresults table; fields sit at
// fixed cell positions within each row.
const (
	tableSelector = "table.forumsearchresults"
	rowSelector   = "tr.topicrow, tr.postrow"
)

var fieldSelectors = map[string]string{
	"title":         "a[href]",
	"author":        "td.author, td.by",
	"reply_count":   "td.reply_count, td.replies",
	"last_activity": "td.last_post, td.date",
}

// detailTextSelector locates the full post text on a topic detail page.
const detailTextSelector = "div.partial_entry"

// Parser turns sanitized HTML into topic rows.
type Parser struct {
	logger *zap.Logger
}

// New returns a Parser that logs dropped rows through logger.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// Extract parses one results page. pageURL resolves relative topic links.
// A row missing its title or URL is dropped and logged, never fatal; a page
// with no recognizable structure at all returns ErrStructureMissing.
func (p *Parser) Extract(body []byte, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}

	base, _ := url.Parse(pageURL)

	table := doc.Find(tableSelector)
	if table.Length() == 0 {
		return Page{}, ErrStructureMissing
	}

	var topics []Topic
	table.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		topic, ok := p.extractRow(row, base)
		if !ok {
			p.logger.Debug("dropping row without title or link", zap.String("page_url", pageURL))
			return
		}
		topics = append(topics, topic)
	})

	return Page{
		Topics:  topics,
		NextURL: nextPageURL(doc, base),
	}, nil
}

func (p *Parser) extractRow(row *goquery.Selection, base *url.URL) (Topic, bool) {
	anchor := row.Find(fieldSelectors["title"]).First()
	title := strings.TrimSpace(anchor.Text())
	href, hasHref := anchor.Attr("href")
	if title == "" || !hasHref || strings.TrimSpace(href) == "" {
		return Topic{}, false
	}

	return Topic{
		Title:        title,
		Author:       cellText(row, fieldSelectors["author"]),
		ReplyCount:   cellInt(row, fieldSelectors["reply_count"]),
		LastActivity: cellText(row, fieldSelectors["last_activity"]),
		URL:          resolveURL(base, href),
	}, true
}

// DetailText extracts the full post text from a topic detail page. Returns
// the empty string when the expected element is absent.
func DetailText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return collapseWhitespace(doc.Find(detailTextSelector).First().Text())
}

func cellText(row *goquery.Selection, selector string) string {
	return collapseWhitespace(row.Find(selector).First().Text())
}

func cellInt(row *goquery.Selection, selector string) int {
	raw := strings.ReplaceAll(cellText(row, selector), ",", "")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func nextPageURL(doc *goquery.Document, base *url.URL) string {
	var next string
	doc.Find("div.pagination a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if !strings.Contains(link.Text(), "Next") {
			return true
		}
		if href, ok := link.Attr("href"); ok {
			next = resolveURL(base, href)
			return false
		}
		return true
	})
	return next
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
