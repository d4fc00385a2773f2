package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("cses-scraper.lib.htmlutil")

// GetText concatenates every text node under node without any trimming.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// LastCellText returns the raw text of the last td inside row.
func LastCellText(row *goquery.Selection) (string, bool) {
	cells := row.Find("td")
	if cells.Length() == 0 {
		return "", false
	}
	return GetText(cells.Last().Get(0)), true
}

// FirstCellText returns the cleaned up text of the first th or td inside row.
func FirstCellText(row *goquery.Selection) (string, bool) {
	cells := row.Find("th, td")
	if cells.Length() == 0 {
		return "", false
	}
	return CleanText(GetText(cells.First().Get(0))), true
}

type Anchor struct {
	Name string
	Href string
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non printable characters and collapses whitespace, it is
// meant for labels, never for scraped values.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// GetAnchors returns the anchors in sel, the href is kept exactly as it is
// written in the document. Anchors without an href attribute are skipped.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href, exists := "", false
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				exists = true
				break
			}
		}
		if !exists {
			continue
		}

		name := CleanText(GetText(n))
		anchors = append(anchors, Anchor{
			Name: name,
			Href: href,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("href", href),
		))
	}

	return anchors
}
