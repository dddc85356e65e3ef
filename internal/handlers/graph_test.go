package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/handlers/mocks"
	"knowledge-graph-service/internal/service"
)

func TestGraphHandler_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	graph := mocks.NewMockGraphService(ctrl)
	graph.EXPECT().Stats(gomock.Any(), int64(1)).Return(graphstore.Stats{TotalNotes: 4, TotalRelationships: 3, AvgConnections: 1.5}, nil)

	h := NewGraphHandler(graph)
	w := httptest.NewRecorder()
	h.Stats(w, newRequest(http.MethodGet, "/stats", "", "1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Stats() status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[StatsResponse](t, w)
	if resp.UserID != 1 || resp.TotalNotes != 4 || resp.TotalRelationships != 3 || resp.AvgConnections != 1.5 {
		t.Errorf("Stats() response = %+v", resp)
	}
}

func TestGraphHandler_Visualization(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setupMock  func(*mocks.MockGraphService)
		wantStatus int
	}{
		{
			name:  "default limit",
			query: "",
			setupMock: func(m *mocks.MockGraphService) {
				m.EXPECT().Visualization(gomock.Any(), int64(1), service.DefaultGraphLimit).Return(graphstore.Graph{
					Nodes: []graphstore.GraphNode{{ID: 1}, {ID: 2}},
					Links: []graphstore.GraphLink{{Source: 1, Target: 2, Score: 0.8}},
				}, nil)
				m.EXPECT().Stats(gomock.Any(), int64(1)).Return(graphstore.Stats{TotalNotes: 2, TotalRelationships: 1, AvgConnections: 1}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad limit",
			query:      "?limit=x",
			setupMock:  func(*mocks.MockGraphService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "?limit=50",
			setupMock: func(m *mocks.MockGraphService) {
				m.EXPECT().Visualization(gomock.Any(), int64(1), 50).Return(graphstore.Graph{}, service.WrapError(service.ErrExternalService, "neo4j"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			graph := mocks.NewMockGraphService(ctrl)
			tt.setupMock(graph)

			h := NewGraphHandler(graph)
			w := httptest.NewRecorder()
			h.Visualization(w, newRequest(http.MethodGet, "/graph/visualization"+tt.query, "", "1", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Visualization() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code == http.StatusOK {
				resp := decodeBody[VisualizationResponse](t, w)
				if len(resp.Nodes) != 2 || len(resp.Links) != 1 || resp.Stats.TotalNotes != 2 {
					t.Errorf("Visualization() response = %+v", resp)
				}
			}
		})
	}
}

func TestGraphHandler_Neighbors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setupMock  func(*mocks.MockGraphService)
		wantStatus int
	}{
		{
			name:  "default depth",
			query: "",
			setupMock: func(m *mocks.MockGraphService) {
				m.EXPECT().Neighbors(gomock.Any(), int64(1), int64(10), 1).Return(service.NeighborGraph{
					Center:    graphstore.Note{NoteID: 10},
					Depth:     1,
					Neighbors: []graphstore.Neighbor{{NoteID: 11, Distance: 1}},
				}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "depth out of range",
			query: "?depth=4",
			setupMock: func(m *mocks.MockGraphService) {
				m.EXPECT().Neighbors(gomock.Any(), int64(1), int64(10), 4).
					Return(service.NeighborGraph{}, &service.ValidationError{Field: "depth", Message: "must be between 1 and 3"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "unknown center",
			query: "?depth=2",
			setupMock: func(m *mocks.MockGraphService) {
				m.EXPECT().Neighbors(gomock.Any(), int64(1), int64(10), 2).Return(service.NeighborGraph{}, service.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			graph := mocks.NewMockGraphService(ctrl)
			tt.setupMock(graph)

			h := NewGraphHandler(graph)
			w := httptest.NewRecorder()
			h.Neighbors(w, newRequest(http.MethodGet, "/graph/neighbors/10"+tt.query, "", "1", map[string]string{"noteID": "10"}))

			if w.Code != tt.wantStatus {
				t.Fatalf("Neighbors() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code == http.StatusOK {
				resp := decodeBody[NeighborsResponse](t, w)
				if resp.CenterNoteID != 10 || len(resp.Neighbors) != 1 {
					t.Errorf("Neighbors() response = %+v", resp)
				}
			}
		})
	}
}
