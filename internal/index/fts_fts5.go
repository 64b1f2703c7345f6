//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			path UNINDEXED,
			title,
			subtitle,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, n ftsDoc) error {
	if _, err := tx.Exec(`DELETE FROM nodes_fts WHERE path = ?`, n.path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO nodes_fts (path, title, subtitle, body, tags) VALUES (?, ?, ?, ?, ?)`,
		n.path, n.title, n.subtitle, n.body, strings.Join(n.tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE path = ?`, path)
}

func ftsReset(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM nodes_fts`)
}

// matchExpr turns free text into an FTS5 query: every term is quoted so
// punctuation such as "c++" or "node.js" is not read as query syntax, and
// the last term matches as a prefix.
func matchExpr(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	if len(terms) > 0 {
		terms[len(terms)-1] += "*"
	}
	return strings.Join(terms, " ")
}

// Search runs an FTS5 query over published nodes, best match first, with
// highlighted body snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT f.path,
		       n.slug,
		       f.title,
		       snippet(nodes_fts, 3, '<b>', '</b>', '...', 32)
		FROM nodes_fts f
		JOIN nodes n ON n.path = f.path
		WHERE nodes_fts MATCH ? AND n.draft = 0
		ORDER BY bm25(nodes_fts, 10.0, 5.0, 1.0, 3.0)
		LIMIT ?
	`, expr, searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return collectResults(rows)
}
