// Package site turns indexed nodes into a static HTML site: it plans the
// pages, renders them through embedded templates and writes the output
// tree.
package site

import (
	"fmt"
	"slices"
	"sort"

	"github.com/grayside/grayside/internal/apperr"
	"github.com/grayside/grayside/internal/models"
	"github.com/grayside/grayside/internal/parser"
	"github.com/grayside/grayside/internal/slug"
)

// Page kinds.
const (
	KindPost       = "post"
	KindNote       = "note"
	KindTag        = "tag"
	KindHome       = "home"
	KindNotesIndex = "notes"
)

// Fixed listing paths.
const (
	HomePath       = "/"
	NotesIndexPath = "/notes/"
)

// PageContext is handed to post and note templates.
type PageContext struct {
	Slug      string `json:"slug"`
	Highlight string `json:"highlight,omitempty"`
	Shadow    string `json:"shadow,omitempty"`
}

// Page is one output page.
type Page struct {
	Path string
	Kind string

	// Node and Context are set for post and note pages.
	Node    *models.Node
	Context PageContext

	// Tag is set for tag pages.
	Tag string

	// Entries lists the nodes shown on tag, home and notes pages, newest
	// first.
	Entries []*models.Node
}

// Plan lays out every page of the site. Drafts get their own page but are
// left out of listings. Nodes with a layout other than post or note produce
// no page. Two pages claiming one path fail with apperr.ErrSlugConflict.
func Plan(nodes []models.Node) ([]Page, error) {
	sorted := make([]*models.Node, len(nodes))
	for i := range nodes {
		sorted[i] = &nodes[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Date.IsZero() != b.Date.IsZero() {
			return b.Date.IsZero()
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Path < b.Path
	})

	var (
		pages     []Page
		posts     []*models.Node
		notes     []*models.Node
		tagOrder  []string
		tagNames  = make(map[string]string)
		tagPosts  = make(map[string][]*models.Node)
		claimedBy = make(map[string]string)
	)

	claim := func(path, owner string) error {
		if prev, ok := claimedBy[path]; ok {
			return fmt.Errorf("site: %w: %s planned by %s and %s", apperr.ErrSlugConflict, path, prev, owner)
		}
		claimedBy[path] = owner
		return nil
	}

	for _, n := range sorted {
		var kind string
		switch n.Layout {
		case parser.LayoutPost:
			kind = KindPost
			if !n.Draft {
				posts = append(posts, n)
			}
		case parser.LayoutNote:
			kind = KindNote
			if !n.Draft {
				notes = append(notes, n)
			}
		default:
			continue
		}
		if err := claim(n.Slug, n.Path); err != nil {
			return nil, err
		}
		pages = append(pages, Page{
			Path:    n.Slug,
			Kind:    kind,
			Node:    n,
			Context: PageContext{Slug: n.Slug, Highlight: n.Highlight, Shadow: n.Shadow},
		})

		for _, tag := range n.Tags {
			ts := slug.TagSlug(tag)
			if ts == "" {
				continue
			}
			if _, seen := tagNames[ts]; !seen {
				tagNames[ts] = tag
				tagOrder = append(tagOrder, ts)
			}
			if kind == KindPost && !n.Draft && !slices.Contains(tagPosts[ts], n) {
				tagPosts[ts] = append(tagPosts[ts], n)
			}
		}
	}

	sort.Strings(tagOrder)
	for _, ts := range tagOrder {
		if err := claim(ts, "tag "+tagNames[ts]); err != nil {
			return nil, err
		}
		pages = append(pages, Page{Path: ts, Kind: KindTag, Tag: tagNames[ts], Entries: tagPosts[ts]})
	}

	if err := claim(HomePath, "home"); err != nil {
		return nil, err
	}
	pages = append(pages, Page{Path: HomePath, Kind: KindHome, Entries: posts})
	if err := claim(NotesIndexPath, "notes index"); err != nil {
		return nil, err
	}
	pages = append(pages, Page{Path: NotesIndexPath, Kind: KindNotesIndex, Entries: notes})

	return pages, nil
}
