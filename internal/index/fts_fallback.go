//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error { return nil }

// Bodies already live in the nodes table, so there is no separate document.
func ftsUpsert(_ *sql.Tx, _ ftsDoc) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsReset(_ *sql.Tx) {}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query as a literal substring of the title, subtitle, body
// or tags of published nodes, newest first. Used when the binary is built
// without the sqlite_fts5 tag.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT path, slug, title, substr(body, 1, 200)
		FROM nodes
		WHERE draft = 0 AND (
			title LIKE ?1 ESCAPE '\' OR subtitle LIKE ?1 ESCAPE '\' OR
			body LIKE ?1 ESCAPE '\' OR tags LIKE ?1 ESCAPE '\')
		ORDER BY date IS NULL, date DESC, path
		LIMIT ?2
	`, like, searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return collectResults(rows)
}
