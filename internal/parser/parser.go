// Package parser extracts frontmatter and the typed fields the site uses from
// Markdown content.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Layouts recognised in the "layout" frontmatter field.
const (
	LayoutPost = "post"
	LayoutNote = "note"
)

var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Subtitle    string
	Layout      string
	Date        time.Time
	Draft       bool
	Tags        []string
	Highlight   string
	Shadow      string
}

// Parse splits YAML frontmatter from the body and decodes the known fields.
// Missing or unparseable frontmatter is not an error: the whole input is
// then treated as body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	date, err := parseDate(fm["date"])
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Subtitle:    stringField(fm, "subtitle"),
		Layout:      strings.ToLower(stringField(fm, "layout")),
		Date:        date,
		Draft:       boolField(fm, "draft"),
		Tags:        extractTags(fm),
		Highlight:   stringField(fm, "highlight"),
		Shadow:      stringField(fm, "shadow"),
	}, nil
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, string(data)
	}

	var fm map[string]any
	rest, err := frontmatter.Parse(bytes.NewReader(trimmed), &fm, yamlFormat)
	if err != nil {
		return nil, string(data)
	}
	return fm, strings.TrimLeft(string(rest), "\n\r")
}

// extractTags accepts a YAML list or a comma-separated string and drops
// blanks and duplicates, keeping first occurrence order.
func extractTags(fm map[string]any) []string {
	var raw []string
	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			switch s := item.(type) {
			case string:
				raw = append(raw, s)
			case fmt.Stringer:
				raw = append(raw, s.String())
			case int, float64, bool:
				raw = append(raw, fmt.Sprint(s))
			}
		}
	case string:
		raw = strings.Split(v, ",")
	}

	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("parser: unrecognised date %q", d)
	default:
		return time.Time{}, fmt.Errorf("parser: date has type %T", v)
	}
}

func stringField(fm map[string]any, key string) string {
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func boolField(fm map[string]any, key string) bool {
	switch v := fm[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}
