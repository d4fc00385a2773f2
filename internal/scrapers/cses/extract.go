package cses

import (
	"bytes"
	"context"
	"cses-scraper/lib/htmlutil"
	"cses-scraper/lib/textutil"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

type Extraction string

const (
	// EXTRACT_POSITION reads the fields from the first five table rows.
	EXTRACT_POSITION Extraction = "position"
	// EXTRACT_LABEL matches rows to fields by the label in their first cell
	// and falls back to the row position for fields that match nothing.
	EXTRACT_LABEL Extraction = "label"
)

func ParseExtraction(value string) (Extraction, error) {
	switch Extraction(value) {
	case "", EXTRACT_POSITION:
		return EXTRACT_POSITION, nil
	case EXTRACT_LABEL:
		return EXTRACT_LABEL, nil
	}
	return "", fmt.Errorf("unknown extraction strategy %q (expected %q or %q)", value, EXTRACT_POSITION, EXTRACT_LABEL)
}

var (
	errNoCsrfToken   = errors.New("csrf token not found on login page")
	errNoAccountLink = errors.New("account link not found, the login was probably rejected")
	errNoTable       = errors.New("user details table not found")
	errTooFewRows    = errors.New("user details table has too few rows")
	errNoCell        = errors.New("user details row has no cells")
)

// labelThreshold is the minimum Jaro-Winkler similarity for a row label to
// be considered a field label.
const labelThreshold = 0.85

var fieldLabels = []string{
	"Name",
	"Country",
	"Submission count",
	"First submission",
	"Last submission",
}

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func findCsrfToken(doc *goquery.Document) (string, error) {
	input := doc.Find("input[name=csrf_token]").First()
	token := input.AttrOr("value", "")
	if token == "" {
		return "", errNoCsrfToken
	}
	return token, nil
}

// findAccountHref returns the href of the first a.account, which is the
// path of the logged in user's profile.
func findAccountHref(ctx context.Context, doc *goquery.Document) (string, error) {
	anchors := htmlutil.GetAnchors(ctx, doc.Find("a.account").First())
	if len(anchors) == 0 || anchors[0].Href == "" {
		return "", errNoAccountLink
	}
	return anchors[0].Href, nil
}

func extractDetail(doc *goquery.Document, strategy Extraction) (Detail, error) {
	tables := doc.Find("table")
	if tables.Length() < 1 {
		return Detail{}, errNoTable
	}
	rows := tables.First().Find("tr")
	if rows.Length() < len(FieldNames) {
		return Detail{}, errTooFewRows
	}

	fieldRows := make([]*goquery.Selection, len(FieldNames))
	if strategy == EXTRACT_LABEL {
		rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
			label, ok := htmlutil.FirstCellText(row)
			if !ok {
				return true
			}
			idx, _ := textutil.BestMatch(label, fieldLabels, labelThreshold)
			if idx >= 0 && fieldRows[idx] == nil {
				fieldRows[idx] = row
			}
			return true
		})
	}
	for i := range fieldRows {
		if fieldRows[i] == nil {
			fieldRows[i] = rows.Eq(i)
		}
	}

	values := make([]string, len(FieldNames))
	for i, row := range fieldRows {
		text, ok := htmlutil.LastCellText(row)
		if !ok {
			return Detail{}, fmt.Errorf("%w: %s", errNoCell, FieldNames[i])
		}
		values[i] = text
	}

	return detailFromValues(values), nil
}
