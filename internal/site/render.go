package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/grayside/grayside/internal/models"
	"github.com/grayside/grayside/internal/slug"
	"github.com/grayside/grayside/internal/tagcolor"
)

//go:embed templates/*.html
var templateFS embed.FS

// DateFormat is how dates are shown on pages.
const DateFormat = "January 02, 2006"

// SummaryWords is the length of listing summaries.
const SummaryWords = 60

var tagPattern = regexp.MustCompile(`<(?:.|\n)*?>`)

// Info is the site-wide metadata shown on every page.
type Info struct {
	Title       string
	Author      string
	Description string
}

// Renderer turns planned pages into HTML documents.
type Renderer struct {
	info    Info
	palette tagcolor.Palette
	md      goldmark.Markdown
	pages   map[string]*template.Template
}

type chip struct {
	Name  string
	Href  string
	Style template.CSS
}

type entry struct {
	Title    string
	Subtitle string
	Slug     string
	Date     string
	Summary  string
	Tags     []chip
}

type pageData struct {
	Site     Info
	Title    string
	Subtitle string
	Date     string
	Context  PageContext
	Content  template.HTML
	Tags     []chip
	Entries  []entry
}

// NewRenderer parses the embedded templates.
func NewRenderer(info Info, palette tagcolor.Palette) (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("site: parse base template: %w", err)
	}
	pages := make(map[string]*template.Template)
	for _, kind := range []string{KindPost, KindNote, KindTag, KindHome, KindNotesIndex} {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("site: clone base template: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+kind+".html"); err != nil {
			return nil, fmt.Errorf("site: parse %s template: %w", kind, err)
		}
		pages[kind] = t
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			gmparser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
		),
	)

	return &Renderer{info: info, palette: palette, md: md, pages: pages}, nil
}

// Markdown converts a node body to HTML.
func (r *Renderer) Markdown(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("site: markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // authored content
}

// Summary returns the first SummaryWords words of rendered HTML with the
// markup stripped.
func Summary(html template.HTML) string {
	words := strings.Fields(tagPattern.ReplaceAllString(string(html), ""))
	if len(words) > SummaryWords {
		words = words[:SummaryWords]
	}
	return strings.Join(words, " ")
}

// Render writes the HTML document for p. bodies holds the rendered
// Markdown of every node by path.
func (r *Renderer) Render(w io.Writer, p Page, bodies map[string]template.HTML) error {
	t, ok := r.pages[p.Kind]
	if !ok {
		return fmt.Errorf("site: no template for page kind %q", p.Kind)
	}

	data := pageData{Site: r.info, Context: p.Context}
	switch p.Kind {
	case KindPost, KindNote:
		n := p.Node
		data.Title = n.Title
		data.Subtitle = n.Subtitle
		data.Date = formatDate(n)
		data.Content = bodies[n.Path]
		data.Tags = r.chips(n.Tags)
	case KindTag:
		data.Title = "Posts about " + p.Tag
		data.Tags = r.chips([]string{p.Tag})
	case KindNotesIndex:
		data.Title = "Notes"
	}
	for _, n := range p.Entries {
		data.Entries = append(data.Entries, entry{
			Title:    n.Title,
			Subtitle: n.Subtitle,
			Slug:     n.Slug,
			Date:     formatDate(n),
			Summary:  Summary(bodies[n.Path]),
			Tags:     r.chips(n.Tags),
		})
	}

	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("site: render %s: %w", p.Path, err)
	}
	return nil
}

func (r *Renderer) chips(tags []string) []chip {
	out := make([]chip, 0, len(tags))
	for _, tag := range tags {
		href := slug.TagSlug(tag)
		if href == "" {
			continue
		}
		style := fmt.Sprintf("background-color: %s; color: %s", r.palette.ColorFor(tag), r.palette.Foreground(tag))
		out = append(out, chip{Name: tag, Href: href, Style: template.CSS(style)}) //nolint:gosec // validated palette
	}
	return out
}

func formatDate(n *models.Node) string {
	if n.Date.IsZero() {
		return ""
	}
	return n.Date.Format(DateFormat)
}
