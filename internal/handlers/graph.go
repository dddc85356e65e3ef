package handlers

import (
	"context"
	"net/http"

	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/service"
)

// GraphService serves aggregate graph views.
type GraphService interface {
	Stats(ctx context.Context, userID int64) (graphstore.Stats, error)
	Visualization(ctx context.Context, userID int64, limit int) (graphstore.Graph, error)
	Neighbors(ctx context.Context, userID, noteID int64, depth int) (service.NeighborGraph, error)
}

// GraphHandler handles stats and graph requests.
type GraphHandler struct {
	graph GraphService
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(graph GraphService) *GraphHandler {
	return &GraphHandler{graph: graph}
}

// StatsResponse is the user's graph summary.
type StatsResponse struct {
	UserID int64 `json:"user_id"`
	graphstore.Stats
}

// VisualizationResponse is the graph payload for 3D rendering.
type VisualizationResponse struct {
	UserID int64                  `json:"user_id"`
	Nodes  []graphstore.GraphNode `json:"nodes"`
	Links  []graphstore.GraphLink `json:"links"`
	Stats  graphstore.Stats       `json:"stats"`
}

// NeighborsResponse is the neighbourhood of a center note.
type NeighborsResponse struct {
	CenterNoteID int64                 `json:"center_note_id"`
	Center       graphstore.Note       `json:"center"`
	Depth        int                   `json:"depth"`
	Neighbors    []graphstore.Neighbor `json:"neighbors"`
}

// Stats returns note and edge counts.
func (h *GraphHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	stats, err := h.graph.Stats(ctx, uid)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, StatsResponse{UserID: uid, Stats: stats})
}

// Visualization returns nodes, links and summary stats.
func (h *GraphHandler) Visualization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultGraphLimit)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	graph, err := h.graph.Visualization(ctx, uid, limit)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get graph")
		return
	}
	stats, err := h.graph.Stats(ctx, uid)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get graph")
		return
	}

	writeJSON(ctx, w, http.StatusOK, VisualizationResponse{
		UserID: uid,
		Nodes:  graph.Nodes,
		Links:  graph.Links,
		Stats:  stats,
	})
}

// Neighbors returns notes within depth hops of the path note.
func (h *GraphHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	depth, err := queryInt(r, "depth", 1)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	neighbors, err := h.graph.Neighbors(ctx, uid, noteID, depth)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get neighbors")
		return
	}
	writeJSON(ctx, w, http.StatusOK, NeighborsResponse{
		CenterNoteID: noteID,
		Center:       neighbors.Center,
		Depth:        neighbors.Depth,
		Neighbors:    neighbors.Neighbors,
	})
}
