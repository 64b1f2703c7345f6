//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM nodes_fts`).Scan(&count); err != nil {
		t.Fatalf("nodes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	n := node("fts.md", "/fts/", "", "search")
	n.Body = "The blog provides powerful full-text search capabilities."
	if err := db.UpsertNode(n); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Slug != "/fts/" {
		t.Errorf("slug = %q", results[0].Slug)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	n := node("gone.md", "/gone/", "")
	n.Body = "vanishing content"
	_ = db.UpsertNode(n)
	_ = db.DeleteNode("gone.md")

	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Error("deleted node still in FTS index")
	}
}

func TestFTS5_DraftsHidden(t *testing.T) {
	db := testDB(t)
	n := node("d.md", "/d/", "")
	n.Body = "secretdraft words"
	n.Draft = true
	_ = db.UpsertNode(n)

	results, _ := db.Search("secretdraft", 10)
	if len(results) != 0 {
		t.Errorf("draft should not be searchable: %+v", results)
	}
}

func TestFTS5_PunctuationAndPrefix(t *testing.T) {
	db := testDB(t)
	n := node("cpp.md", "/cpp/", "")
	n.Body = "Notes on c++ templates and node.js streams"
	if err := db.UpsertNode(n); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	for _, q := range []string{"c++", "node.js", "templ", `say "hi`} {
		if _, err := db.Search(q, 10); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}
	results, err := db.Search("templ", 10)
	if err != nil || len(results) != 1 {
		t.Errorf("prefix search = %v, %v; want one hit", results, err)
	}
}

func TestMatchExpr(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"go":          `"go"*`,
		"hello world": `"hello" "world"*`,
		`a"b`:         `"a""b"*`,
	}
	for in, want := range cases {
		if got := matchExpr(in); got != want {
			t.Errorf("matchExpr(%q) = %s, want %s", in, got, want)
		}
	}
}
