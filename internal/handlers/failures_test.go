package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"knowledge-graph-service/internal/storage"
	storagemocks "knowledge-graph-service/internal/storage/mocks"
)

type fakeRawPublisher struct {
	err   error
	calls int
}

func (p *fakeRawPublisher) PublishRaw(_ context.Context, _ string, _ []byte) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "replayed-1", nil
}

func TestFailureHandler_List(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setupMock  func(*storagemocks.MockFailureStore)
		wantStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().List(gomock.Any(), 50, false).Return([]storage.Failure{{ID: 2}, {ID: 1}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "include replayed",
			query: "?limit=5&include_replayed=true",
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().List(gomock.Any(), 5, true).Return([]storage.Failure{{ID: 2}, {ID: 1}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "limit out of range",
			query:      "?limit=0",
			setupMock:  func(*storagemocks.MockFailureStore) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "ledger failure",
			query: "",
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().List(gomock.Any(), 50, false).Return(nil, errors.New("database is locked"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			failures := storagemocks.NewMockFailureStore(ctrl)
			tt.setupMock(failures)

			h := NewFailureHandler(failures, nil)
			w := httptest.NewRecorder()
			h.List(w, newRequest(http.MethodGet, "/ingestion/failures"+tt.query, "", "", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("List() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code == http.StatusOK {
				resp := decodeBody[FailureListResponse](t, w)
				if resp.Count != 2 || len(resp.Failures) != 2 {
					t.Errorf("List() response = %+v", resp)
				}
			}
		})
	}
}

func TestFailureHandler_Replay(t *testing.T) {
	replayedAt := time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		id         string
		pubErr     error
		setupMock  func(*storagemocks.MockFailureStore)
		wantStatus int
		wantCalls  int
	}{
		{
			name: "replayed",
			id:   "3",
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().Get(gomock.Any(), int64(3)).Return(&storage.Failure{ID: 3, EventType: "note.created", Body: []byte(`{}`)}, nil)
				m.EXPECT().MarkReplayed(gomock.Any(), int64(3)).Return(nil)
			},
			wantStatus: http.StatusAccepted,
			wantCalls:  1,
		},
		{
			name: "unknown failure",
			id:   "3",
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().Get(gomock.Any(), int64(3)).Return(nil, storage.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "already replayed",
			id:   "3",
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().Get(gomock.Any(), int64(3)).Return(&storage.Failure{ID: 3, ReplayedAt: &replayedAt}, nil)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "broker failure",
			id:     "3",
			pubErr: errors.New("connection reset"),
			setupMock: func(m *storagemocks.MockFailureStore) {
				m.EXPECT().Get(gomock.Any(), int64(3)).Return(&storage.Failure{ID: 3, EventType: "note.deleted"}, nil)
			},
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
		},
		{
			name:       "bad id",
			id:         "x",
			setupMock:  func(*storagemocks.MockFailureStore) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			failures := storagemocks.NewMockFailureStore(ctrl)
			tt.setupMock(failures)
			pub := &fakeRawPublisher{err: tt.pubErr}

			h := NewFailureHandler(failures, pub)
			w := httptest.NewRecorder()
			h.Replay(w, newRequest(http.MethodPost, "/ingestion/failures/"+tt.id+"/replay", "", "", map[string]string{"failureID": tt.id}))

			if w.Code != tt.wantStatus {
				t.Fatalf("Replay() status = %d, want %d, body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if pub.calls != tt.wantCalls {
				t.Errorf("PublishRaw calls = %d, want %d", pub.calls, tt.wantCalls)
			}
			if w.Code == http.StatusAccepted {
				resp := decodeBody[ReplayResponse](t, w)
				if resp.MessageID != "replayed-1" || resp.FailureID != 3 {
					t.Errorf("Replay() response = %+v", resp)
				}
			}
		})
	}
}

func TestFailureHandler_ReplayNotConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewFailureHandler(storagemocks.NewMockFailureStore(ctrl), nil)
	w := httptest.NewRecorder()
	h.Replay(w, newRequest(http.MethodPost, "/ingestion/failures/3/replay", "", "", map[string]string{"failureID": "3"}))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Replay() status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
