// Package slug derives canonical URL paths for content nodes and tags.
//
// A content directory is named "<anything>---<name>"; the part after the last
// delimiter becomes the kebab-cased slug segment. Directories under a "notes"
// segment are published below /notes/.
package slug

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Delimiter separates the sortable prefix of a content directory name from
// its slug segment.
const Delimiter = "---"

const (
	notesName    = "notes"
	notesSegment = "/" + notesName + "/"
	tagsPrefix   = "/tags/"
)

var (
	// ErrNoDelimiter is returned when the content directory name carries no
	// Delimiter, so no slug segment can be located.
	ErrNoDelimiter = errors.New("slug: directory name has no " + Delimiter + " delimiter")
	// ErrEmptySegment is returned when the text after the delimiter kebabs to
	// nothing (e.g. "2019-01-01---").
	ErrEmptySegment = errors.New("slug: empty segment after delimiter")
	// ErrReservedSegment is returned when a file outside a notes directory
	// would be published at /notes/, the notes index.
	ErrReservedSegment = errors.New("slug: segment \"" + notesName + "\" is reserved outside " + notesSegment)
)

// Derive computes the slug for the content file at fullPath.
//
// Both separators are accepted; the result always uses forward slashes and
// starts and ends with "/".
func Derive(fullPath string) (string, error) {
	p := filepath.ToSlash(fullPath)
	dir := path.Base(path.Dir(p))

	i := strings.LastIndex(dir, Delimiter)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrNoDelimiter, fullPath)
	}
	seg := KebabCase(dir[i+len(Delimiter):])
	if seg == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySegment, fullPath)
	}

	if IsNote(p) {
		return notesSegment + seg + "/", nil
	}
	if seg == notesName {
		return "", fmt.Errorf("%w: %s", ErrReservedSegment, fullPath)
	}
	return "/" + seg + "/", nil
}

// IsNote reports whether p lies under a "notes" directory segment.
func IsNote(p string) bool {
	return strings.Contains("/"+filepath.ToSlash(p), notesSegment)
}

// TagSlug returns the listing path for tag, or "" when the tag has no
// word characters.
func TagSlug(tag string) string {
	k := KebabCase(tag)
	if k == "" {
		return ""
	}
	return tagsPrefix + k + "/"
}

// TagSlugs maps tags to their listing paths, preserving order and dropping
// tags without a usable slug.
func TagSlugs(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if s := TagSlug(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
