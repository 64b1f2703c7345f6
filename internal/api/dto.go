package api

import (
	"github.com/grayside/grayside/internal/index"
	"github.com/grayside/grayside/internal/models"
	"github.com/grayside/grayside/internal/nodeservice"
)

// NodeDetail is the full node response type (aliased from the domain layer).
type NodeDetail = nodeservice.NodeDetail

// NodeListResponse wraps paginated node listings.
type NodeListResponse struct {
	Nodes []models.Node `json:"nodes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps the tag listing.
type TagListResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// SlugResponse is returned by the slug derivation endpoint.
type SlugResponse = nodeservice.SlugResult

// ColorResponse is returned by the tag colour endpoint.
type ColorResponse = nodeservice.TagColor
