package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grayside/grayside/internal/apperr"
	"github.com/grayside/grayside/internal/index"
	"github.com/grayside/grayside/internal/nodeservice"
	"github.com/grayside/grayside/internal/slug"
)

// Handler holds API route handlers.
type Handler struct {
	svc *nodeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *nodeservice.Service) *Handler {
	return &Handler{svc: svc}
}

// nodeSlug extracts the slug from the URL (everything after /api/nodes/).
// Supports encoded slashes (e.g. notes%2Flti-notes).
func nodeSlug(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, slug.ErrNoDelimiter), errors.Is(err, slug.ErrEmptySegment), errors.Is(err, slug.ErrReservedSegment):
		writeErrorBody(w, http.StatusBadRequest, codeInvalidSlug, err.Error())
	case errors.Is(err, apperr.ErrInvalidInput):
		badRequest(w, err.Error())
	default:
		slog.Error("api: "+op+" failed", slog.String("error", err.Error()))
		writeErrorBody(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func boolParam(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(q.Get(key))
	return b
}

// ListNodes handles GET /api/nodes.
//
//	@Summary		List nodes, newest first
//	@Tags			nodes
//	@Produce		json
//	@Param			layout	query		string	false	"Filter by layout"	Enums(post, note)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			drafts	query		bool	false	"Include drafts"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NodeListResponse
//	@Security		BearerAuth
//	@Router			/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	nodes, total, err := h.svc.List(r.Context(), index.ListOptions{
		Layout:        q.Get("layout"),
		Tag:           q.Get("tag"),
		IncludeDrafts: boolParam(q, "drafts"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeError(w, "list nodes", err)
		return
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: nodes, Total: total})
}

// GetNode handles GET /api/nodes/*.
//
//	@Summary		Get a single node by slug
//	@Tags			nodes
//	@Produce		json
//	@Param			slug	path		string	true	"Node slug"
//	@Success		200		{object}	NodeDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{slug} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	s := nodeSlug(r)
	if s == "" {
		badRequest(w, "slug is required")
		return
	}
	node, err := h.svc.GetBySlug(r.Context(), s)
	if err != nil {
		writeError(w, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Tags handles GET /api/tags.
//
//	@Summary		List tags with counts, page slugs and colours
//	@Tags			tags
//	@Produce		json
//	@Param			drafts	query		bool	false	"Count drafts"
//	@Success		200		{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context(), boolParam(r.URL.Query(), "drafts"))
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across published content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Slug handles GET /api/slug.
//
//	@Summary		Derive the slug for a content file path
//	@Tags			derive
//	@Produce		json
//	@Param			path	query		string	true	"Content file path"
//	@Success		200		{object}	SlugResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/slug [get]
func (h *Handler) Slug(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		badRequest(w, "query parameter 'path' is required")
		return
	}
	res, err := h.svc.DeriveSlug(p)
	if err != nil {
		writeError(w, "derive slug", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Color handles GET /api/color.
//
//	@Summary		Colour assigned to a tag
//	@Tags			derive
//	@Produce		json
//	@Param			tag	query		string	false	"Tag name"
//	@Success		200	{object}	ColorResponse
//	@Security		BearerAuth
//	@Router			/color [get]
func (h *Handler) Color(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Color(r.URL.Query().Get("tag")))
}
