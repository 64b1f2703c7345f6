package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/grayside/grayside/internal/apperr"
	"github.com/grayside/grayside/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ftsDoc is the searchable projection of a node.
type ftsDoc struct {
	path, title, subtitle, body string
	tags                        []string
}

const defaultSearchLimit = 20

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return limit
}

func collectResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Slug, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListOptions filters ListNodes. Zero values mean "any".
type ListOptions struct {
	Layout        string
	Tag           string
	IncludeDrafts bool
	Limit         int
	Offset        int
}

const nodeColumns = `path, slug, title, subtitle, layout, date, draft, tags, tag_slugs,
	highlight, shadow, frontmatter, checksum, body, updated_at`

// UpsertNode inserts or replaces a node, its FTS entry and its tag rows within
// a transaction. A slug already owned by another path is rejected with
// apperr.ErrSlugConflict.
func (db *DB) UpsertNode(n *models.Node) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var owner string
	err = tx.QueryRow(`SELECT path FROM nodes WHERE slug = ? AND path != ?`, n.Slug, n.Path).Scan(&owner)
	switch {
	case err == nil:
		return fmt.Errorf("index: %w: %s is used by %s and %s", apperr.ErrSlugConflict, n.Slug, owner, n.Path)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("index: slug lookup: %w", err)
	}

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	tagSlugsJSON, _ := json.Marshal(nonNil(n.TagSlugs))
	fmJSON, err := json.Marshal(n.Frontmatter)
	if err != nil {
		return fmt.Errorf("index: encode frontmatter: %w", err)
	}
	var date sql.NullTime
	if !n.Date.IsZero() {
		date = sql.NullTime{Time: n.Date, Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			slug        = excluded.slug,
			title       = excluded.title,
			subtitle    = excluded.subtitle,
			layout      = excluded.layout,
			date        = excluded.date,
			draft       = excluded.draft,
			tags        = excluded.tags,
			tag_slugs   = excluded.tag_slugs,
			highlight   = excluded.highlight,
			shadow      = excluded.shadow,
			frontmatter = excluded.frontmatter,
			checksum    = excluded.checksum,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, n.Path, n.Slug, n.Title, n.Subtitle, n.Layout, date, n.Draft,
		string(tagsJSON), string(tagSlugsJSON), n.Highlight, n.Shadow, string(fmJSON),
		n.Checksum, n.Body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert node: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	doc := ftsDoc{path: n.Path, title: n.Title, subtitle: n.Subtitle, body: n.Body, tags: n.Tags}
	if err := ftsUpsert(tx, doc); err != nil {
		return err
	}

	// Replace tags: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM node_tags WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if len(n.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO node_tags (path, tag) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range n.Tags {
			if _, err := stmt.Exec(n.Path, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNode removes a node, its FTS entry and its tag rows.
func (db *DB) DeleteNode(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM node_tags WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete node: %w", err)
	}
	return tx.Commit()
}

// Reset removes every node, leaving an empty index.
func (db *DB) Reset() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsReset(tx)
	for _, table := range []string{"node_tags", "nodes"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

const metaContentRoot = "content_root"

// ContentRoot returns the content root the index was last synced from, or
// "" for a new index.
func (db *DB) ContentRoot() (string, error) {
	var root string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaContentRoot).Scan(&root)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: content root: %w", err)
	}
	return root, nil
}

// SetContentRoot records the content root the index is synced from.
func (db *DB) SetContentRoot(root string) error {
	_, err := db.conn.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, metaContentRoot, root)
	if err != nil {
		return fmt.Errorf("index: set content root: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a node, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM nodes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed node.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetBySlug returns the node published at slug.
func (db *DB) GetBySlug(slug string) (*models.Node, error) {
	row := db.conn.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE slug = ?`, slug)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: slug %s: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get by slug: %w", err)
	}
	return n, nil
}

// ListNodes returns nodes matching opts, newest first (undated last), and
// the total number of matches ignoring Limit/Offset.
func (db *DB) ListNodes(opts ListOptions) ([]models.Node, int, error) {
	var (
		where []string
		args  []any
	)
	if opts.Layout != "" {
		where = append(where, "layout = ?")
		args = append(args, opts.Layout)
	}
	if opts.Tag != "" {
		where = append(where, "path IN (SELECT path FROM node_tags WHERE tag = ?)")
		args = append(args, opts.Tag)
	}
	if !opts.IncludeDrafts {
		where = append(where, "draft = 0")
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM nodes`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count nodes: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := db.conn.Query(`SELECT `+nodeColumns+` FROM nodes`+cond+
		` ORDER BY date IS NULL, date DESC, path LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list nodes: %w", err)
	}
	defer rows.Close()

	var out []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan node: %w", err)
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// TagCounts returns every tag with the number of nodes carrying it, most
// used first. Drafts are only counted when includeDrafts is set.
func (db *DB) TagCounts(includeDrafts bool) ([]models.TagCount, error) {
	q := `SELECT t.tag, count(*) FROM node_tags t JOIN nodes n ON n.path = t.path`
	if !includeDrafts {
		q += ` WHERE n.draft = 0`
	}
	q += ` GROUP BY t.tag ORDER BY count(*) DESC, t.tag`

	rows, err := db.conn.Query(q)
	if err != nil {
		return nil, fmt.Errorf("index: tag counts: %w", err)
	}
	defer rows.Close()

	var out []models.TagCount
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(s rowScanner) (*models.Node, error) {
	var (
		n                      models.Node
		date                   sql.NullTime
		tags, tagSlugs, fmJSON string
	)
	err := s.Scan(&n.Path, &n.Slug, &n.Title, &n.Subtitle, &n.Layout, &date, &n.Draft,
		&tags, &tagSlugs, &n.Highlight, &n.Shadow, &fmJSON, &n.Checksum, &n.Body, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if date.Valid {
		n.Date = date.Time
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(tagSlugs), &n.TagSlugs); err != nil {
		return nil, fmt.Errorf("decode tag slugs: %w", err)
	}
	if err := json.Unmarshal([]byte(fmJSON), &n.Frontmatter); err != nil {
		return nil, fmt.Errorf("decode frontmatter: %w", err)
	}
	n.Tags = nonNil(n.Tags)
	n.TagSlugs = nonNil(n.TagSlugs)
	return &n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
