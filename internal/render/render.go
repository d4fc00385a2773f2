package render

import (
	"cses-scraper/internal/scrapers/cses"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Format string

const (
	FORMAT_JSON  Format = "json"
	FORMAT_TABLE Format = "table"
)

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FORMAT_JSON:
		return FORMAT_JSON, nil
	case FORMAT_TABLE:
		return FORMAT_TABLE, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected %q or %q)", value, FORMAT_JSON, FORMAT_TABLE)
}

// Result writes the result mapping to w in the given format.
func Result(w io.Writer, format Format, result cses.Result) error {
	switch format {
	case FORMAT_TABLE:
		return Table(w, result)
	case "", FORMAT_JSON:
		return JSON(w, result)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// JSON writes the mapping indented with every object's keys sorted, detail
// fields included.
func JSON(w io.Writer, result cses.Result) error {
	out := make(map[string]map[string]string, len(result))
	for username, detail := range result {
		fields := make(map[string]string, len(cses.FieldNames))
		for i, value := range detail.Values() {
			fields[cses.FieldNames[i]] = value
		}
		out[username] = fields
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(out)
}

func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// Table writes one row per username, sorted by username.
func Table(w io.Writer, result cses.Result) error {
	t := NewTable(w)

	header := table.Row{"Username"}
	for _, name := range cses.FieldNames {
		header = append(header, name)
	}
	t.AppendHeader(header)

	for _, username := range Usernames(result) {
		row := table.Row{username}
		for _, value := range result[username].Values() {
			row = append(row, value)
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

func Usernames(result cses.Result) []string {
	usernames := make([]string, 0, len(result))
	for username := range result {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	return usernames
}
