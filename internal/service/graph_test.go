package service_test

import (
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/service"
	"knowledge-graph-service/internal/service/mocks"
)

func TestGraphService_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockGraphReader(ctrl)
	want := graphstore.Stats{TotalNotes: 4, TotalRelationships: 3, AvgConnections: 1.5}
	reader.EXPECT().Stats(gomock.Any(), int64(1)).Return(want, nil)

	got, err := service.NewGraphService(reader).Stats(testContext(), 1)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestGraphService_VisualizationLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default", limit: 0, want: service.DefaultGraphLimit},
		{name: "explicit", limit: 25, want: 25},
		{name: "capped", limit: 10000, want: service.MaxGraphLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			reader := mocks.NewMockGraphReader(ctrl)
			reader.EXPECT().Visualization(gomock.Any(), int64(1), tt.want).Return(graphstore.Graph{}, nil)

			if _, err := service.NewGraphService(reader).Visualization(testContext(), 1, tt.limit); err != nil {
				t.Fatalf("Visualization() error = %v", err)
			}
		})
	}
}

func TestGraphService_Neighbors(t *testing.T) {
	tests := []struct {
		name      string
		depth     int
		mockSetup func(r *mocks.MockGraphReader)
		wantErr   error
		wantCount int
	}{
		{
			name:  "two hops",
			depth: 2,
			mockSetup: func(r *mocks.MockGraphReader) {
				r.EXPECT().GetNote(gomock.Any(), int64(1), int64(5)).Return(graphstore.Note{NoteID: 5, Title: "center"}, nil)
				r.EXPECT().Neighbors(gomock.Any(), int64(1), int64(5), 2).Return([]graphstore.Neighbor{
					{NoteID: 6, Distance: 1},
					{NoteID: 7, Distance: 2},
				}, nil)
			},
			wantCount: 2,
		},
		{
			name:      "depth out of range",
			depth:     4,
			mockSetup: func(r *mocks.MockGraphReader) {},
			wantErr:   service.ErrInvalidInput,
		},
		{
			name:  "unknown center",
			depth: 1,
			mockSetup: func(r *mocks.MockGraphReader) {
				r.EXPECT().GetNote(gomock.Any(), int64(1), int64(5)).Return(graphstore.Note{}, graphstore.ErrNoteNotFound)
			},
			wantErr: service.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			reader := mocks.NewMockGraphReader(ctrl)
			tt.mockSetup(reader)

			got, err := service.NewGraphService(reader).Neighbors(testContext(), 1, 5, tt.depth)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Neighbors() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Neighbors() error = %v", err)
			}
			if len(got.Neighbors) != tt.wantCount || got.Center.NoteID != 5 {
				t.Errorf("Neighbors() = %+v", got)
			}
		})
	}
}
