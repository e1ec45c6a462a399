package api

import (
	"github.com/starford/anubis/internal/docservice"
	"github.com/starford/anubis/internal/graph"
)

// BlockDetail is the full block response type (aliased from the domain layer).
type BlockDetail = docservice.BlockDetail

// BlockListItem is a lightweight item in a list response (aliased from the domain layer).
type BlockListItem = docservice.BlockListItem

// Connection is one neighbour of a block (aliased from the domain layer).
type Connection = docservice.Connection

// BlockListResponse wraps block listings.
type BlockListResponse struct {
	Blocks []BlockListItem `json:"blocks" validate:"required"`
	Total  int             `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Name     string `json:"name" example:"Intro" validate:"required"`
	Template string `json:"template" example:"default"`
	Snippet  string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ConnectionsResponse wraps the neighbours of a block.
type ConnectionsResponse struct {
	Name        string       `json:"name" example:"Intro" validate:"required"`
	Connections []Connection `json:"connections" validate:"required"`
}

// GraphResponse wraps the reference graph.
type GraphResponse struct {
	Nodes []string     `json:"nodes" validate:"required"`
	Edges []graph.Edge `json:"edges" validate:"required"`
}
