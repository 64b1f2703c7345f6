// Package content turns Markdown files into Nodes: parsed frontmatter plus
// the derived slug and tag slugs.
package content

import (
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/grayside/grayside/internal/checksum"
	"github.com/grayside/grayside/internal/models"
	"github.com/grayside/grayside/internal/parser"
	"github.com/grayside/grayside/internal/slug"
)

// Ingest builds a Node for a content file. path is the file's identity in
// the content tree and absPath its location on disk, from which the slug is
// derived. Errors from slug derivation are wrapped with the path and remain
// matchable with errors.Is (slug.ErrNoDelimiter, slug.ErrEmptySegment,
// slug.ErrReservedSegment).
func Ingest(path, absPath string, data []byte) (*models.Node, error) {
	s, err := slug.Derive(absPath)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("content: parse %s: %w", absPath, err)
	}

	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}

	return &models.Node{
		Path:        path,
		Slug:        s,
		Title:       titleOr(res.Title, s),
		Subtitle:    res.Subtitle,
		Layout:      layoutFor(res.Layout, absPath),
		Date:        res.Date,
		Draft:       res.Draft,
		Tags:        tags,
		TagSlugs:    slug.TagSlugs(tags),
		Highlight:   res.Highlight,
		Shadow:      res.Shadow,
		Frontmatter: res.Frontmatter,
		Body:        res.Body,
		Checksum:    checksum.Sum(data),
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// layoutFor defaults files without a layout by location: anything under a
// notes segment is a note, everything else a post.
func layoutFor(declared, absPath string) string {
	if declared != "" {
		return declared
	}
	if slug.IsNote(absPath) {
		return parser.LayoutNote
	}
	return parser.LayoutPost
}

// titleOr falls back to a title-cased rendition of the slug's last segment
// for files with neither a title field nor an H1.
func titleOr(title, s string) string {
	if title != "" {
		return title
	}
	words := strings.ReplaceAll(path.Base(strings.TrimSuffix(s, "/")), "-", " ")
	return cases.Title(language.English).String(words)
}
