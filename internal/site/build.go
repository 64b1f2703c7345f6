package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/grayside/grayside/internal/checksum"
	"github.com/grayside/grayside/internal/index"
	"github.com/grayside/grayside/internal/models"
	"github.com/grayside/grayside/internal/storage"
)

// NodeLister is the slice of the index a build reads from.
type NodeLister interface {
	ListNodes(opts index.ListOptions) ([]models.Node, int, error)
}

// Result summarises one build.
type Result struct {
	ID        string        `json:"build_id"`
	Pages     int           `json:"pages"`
	Written   int           `json:"written"`
	Static    int           `json:"static"`
	Removed   int           `json:"removed"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Builder renders the indexed content into an output tree. Builds are
// serialised; concurrent calls wait for each other.
type Builder struct {
	nodes    NodeLister
	out      storage.Provider
	static   storage.Provider
	renderer *Renderer
	logger   *slog.Logger

	mu sync.Mutex
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithStatic copies every file of static into the output root.
func WithStatic(static storage.Provider) BuilderOption {
	return func(b *Builder) {
		b.static = static
	}
}

// WithLogger sets the builder logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder writing to out. out should match every file
// (storage.WithExtensions with no arguments) so stale outputs are found.
func NewBuilder(nodes NodeLister, out storage.Provider, renderer *Renderer, opts ...BuilderOption) *Builder {
	b := &Builder{
		nodes:    nodes,
		out:      out,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OutputFile maps a page path to its file in the output tree.
func OutputFile(pagePath string) string {
	p := strings.Trim(pagePath, "/")
	if p == "" {
		return "index.html"
	}
	return p + "/index.html"
}

// Build plans and renders every page, copies static assets and removes
// output files no longer produced. Files whose content is unchanged are not
// rewritten.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := Result{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := b.logger.With(slog.String("build_id", res.ID))

	nodes, _, err := b.nodes.ListNodes(index.ListOptions{IncludeDrafts: true})
	if err != nil {
		return res, fmt.Errorf("site: list nodes: %w", err)
	}
	pages, err := Plan(nodes)
	if err != nil {
		return res, err
	}
	res.Pages = len(pages)

	bodies, err := b.renderBodies(ctx, nodes)
	if err != nil {
		return res, err
	}

	existing, err := b.out.List("")
	if err != nil {
		return res, fmt.Errorf("site: list output: %w", err)
	}
	current := make(map[string]string, len(existing))
	for _, m := range existing {
		current[m.Path] = m.Checksum
	}

	files := make(map[string][]byte, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var buf bytes.Buffer
		if err := b.renderer.Render(&buf, p, bodies); err != nil {
			return res, err
		}
		files[OutputFile(p.Path)] = buf.Bytes()
	}

	if b.static != nil {
		metas, err := b.static.List("")
		if err != nil {
			return res, fmt.Errorf("site: list static: %w", err)
		}
		for _, m := range metas {
			rel := filepath.ToSlash(m.Path)
			if _, clash := files[rel]; clash {
				logger.Warn("build: static file shadowed by page", slog.String("path", rel))
				continue
			}
			data, err := b.static.Read(m.Path)
			if err != nil {
				return res, fmt.Errorf("site: read static: %w", err)
			}
			files[rel] = data
			res.Static++
		}
	}

	for rel, data := range files {
		if checksum.Matches(data, current[filepath.FromSlash(rel)]) {
			continue
		}
		if err := b.out.Write(filepath.FromSlash(rel), data); err != nil {
			return res, fmt.Errorf("site: write %s: %w", rel, err)
		}
		res.Written++
	}

	for _, m := range existing {
		if _, keep := files[filepath.ToSlash(m.Path)]; keep {
			continue
		}
		if err := b.out.Delete(m.Path); err != nil {
			logger.Warn("build: remove stale failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res.Removed++
	}

	res.Duration = time.Since(res.StartedAt)
	logger.Info("build: done",
		slog.Int("pages", res.Pages),
		slog.Int("written", res.Written),
		slog.Int("static", res.Static),
		slog.Int("removed", res.Removed),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// renderBodies converts every node body to HTML using a bounded worker
// group.
func (b *Builder) renderBodies(ctx context.Context, nodes []models.Node) (map[string]template.HTML, error) {
	out := make([]template.HTML, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			html, err := b.renderer.Markdown(nodes[i].Body)
			if err != nil {
				return fmt.Errorf("%s: %w", nodes[i].Path, err)
			}
			out[i] = html
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	bodies := make(map[string]template.HTML, len(nodes))
	for i, n := range nodes {
		bodies[n.Path] = out[i]
	}
	return bodies, nil
}
