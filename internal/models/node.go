// Package models defines the domain types shared across the site pipeline.
package models

import "time"

// Node is a Markdown content file after ingestion. Slug and TagSlugs are
// derived once from the file location and frontmatter and never change for
// a given file revision.
type Node struct {
	Path        string         `json:"path"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Subtitle    string         `json:"subtitle,omitempty"`
	Layout      string         `json:"layout,omitempty"`
	Date        time.Time      `json:"date"`
	Draft       bool           `json:"draft"`
	Tags        []string       `json:"tags"`
	TagSlugs    []string       `json:"tag_slugs"`
	Highlight   string         `json:"highlight,omitempty"`
	Shadow      string         `json:"shadow,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Body        string         `json:"-"`
	Checksum    string         `json:"checksum"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FileMetadata is a lightweight representation returned by storage listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagCount pairs a tag with the number of published nodes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
	Count int    `json:"count"`
}
