// Package nodeservice is the read-side domain layer shared by the HTTP API
// and the MCP server.
package nodeservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/grayside/grayside/internal/apperr"
	"github.com/grayside/grayside/internal/index"
	"github.com/grayside/grayside/internal/models"
	"github.com/grayside/grayside/internal/slug"
	"github.com/grayside/grayside/internal/storage"
	"github.com/grayside/grayside/internal/tagcolor"
)

// NodeDetail is a node together with its Markdown body and raw source.
type NodeDetail struct {
	models.Node
	Body    string `json:"body"`
	Content string `json:"content"`
}

// TagColor describes how a tag is displayed.
type TagColor struct {
	Tag        string `json:"tag"`
	Slug       string `json:"slug"`
	Index      int    `json:"index"`
	Color      string `json:"color"`
	Foreground string `json:"foreground"`
}

// SlugResult is the outcome of deriving a slug for a path.
type SlugResult struct {
	Path   string `json:"path"`
	Slug   string `json:"slug"`
	IsNote bool   `json:"is_note"`
}

// Service answers queries over the content index.
type Service struct {
	db      index.NodeIndex
	store   storage.Provider
	palette tagcolor.Palette
}

// NewService creates a new node service.
func NewService(db index.NodeIndex, store storage.Provider, palette tagcolor.Palette) *Service {
	return &Service{db: db, store: store, palette: palette}
}

// Palette returns the palette used for tag colours.
func (s *Service) Palette() tagcolor.Palette {
	return s.palette
}

// GetBySlug returns the node published at slug. A slug without its
// surrounding slashes is accepted.
func (s *Service) GetBySlug(_ context.Context, nodeSlug string) (*NodeDetail, error) {
	n, err := s.db.GetBySlug(normalizeSlug(nodeSlug))
	if err != nil {
		return nil, err
	}
	detail := &NodeDetail{Node: *n, Body: n.Body}
	data, err := s.store.Read(n.Path)
	switch {
	case err == nil:
		detail.Content = string(data)
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("nodeservice: %s: %w", n.Path, apperr.ErrNotFound)
	default:
		return nil, err
	}
	return detail, nil
}

// List returns indexed nodes matching opts.
func (s *Service) List(_ context.Context, opts index.ListOptions) ([]models.Node, int, error) {
	nodes, total, err := s.db.ListNodes(opts)
	if err != nil {
		return nil, 0, err
	}
	if nodes == nil {
		nodes = []models.Node{}
	}
	return nodes, total, nil
}

// Tags returns every tag with its count, page slug and colour.
func (s *Service) Tags(_ context.Context, includeDrafts bool) ([]models.TagCount, error) {
	counts, err := s.db.TagCounts(includeDrafts)
	if err != nil {
		return nil, err
	}
	for i := range counts {
		counts[i].Slug = slug.TagSlug(counts[i].Tag)
		counts[i].Color = s.palette.ColorFor(counts[i].Tag)
	}
	if counts == nil {
		counts = []models.TagCount{}
	}
	return counts, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("nodeservice: empty query: %w", apperr.ErrInvalidInput)
	}
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []index.SearchResult{}
	}
	return res, nil
}

// DeriveSlug computes the slug a content file at path would be published
// under. It fails with slug.ErrNoDelimiter, slug.ErrEmptySegment or
// slug.ErrReservedSegment.
func (s *Service) DeriveSlug(path string) (SlugResult, error) {
	out, err := slug.Derive(path)
	if err != nil {
		return SlugResult{}, err
	}
	return SlugResult{Path: path, Slug: out, IsNote: slug.IsNote(path)}, nil
}

// Color reports the display colours for tag.
func (s *Service) Color(tag string) TagColor {
	return TagColor{
		Tag:        tag,
		Slug:       slug.TagSlug(tag),
		Index:      s.palette.Index(tag),
		Color:      s.palette.ColorFor(tag),
		Foreground: s.palette.Foreground(tag),
	}
}

func normalizeSlug(s string) string {
	s = strings.Trim(s, "/")
	if s == "" {
		return "/"
	}
	return "/" + s + "/"
}
