package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFailureRepo_RecordAndGet(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	f := &Failure{
		MessageID: "msg-1",
		EventType: "note.created",
		NoteID:    42,
		UserID:    7,
		Body:      []byte(`{"event_type":"note.created","note_id":42,"user_id":7}`),
		Attempts:  3,
		LastError: "embedding service unavailable",
	}
	if err := repo.Record(ctx, f); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if f.ID == 0 {
		t.Fatal("Record() did not set ID")
	}
	if f.FailedAt.IsZero() {
		t.Fatal("Record() did not set FailedAt")
	}

	got, err := repo.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MessageID != f.MessageID || got.EventType != f.EventType || got.NoteID != 42 || got.UserID != 7 {
		t.Errorf("Get() = %+v, want fields of %+v", got, f)
	}
	if string(got.Body) != string(f.Body) {
		t.Errorf("Get() body = %s, want %s", got.Body, f.Body)
	}
	if got.Attempts != 3 || got.LastError != f.LastError {
		t.Errorf("Get() attempts/error = %d/%q", got.Attempts, got.LastError)
	}
	if got.Replayed() {
		t.Error("new failure should not be replayed")
	}
}

func TestFailureRepo_GetNotFound(t *testing.T) {
	repo := newTestDB(t)

	_, err := repo.Get(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFailureRepo_List(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 14, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		f := &Failure{
			MessageID: "msg",
			EventType: "note.updated",
			NoteID:    int64(i + 1),
			UserID:    1,
			Attempts:  3,
			LastError: "boom",
			FailedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Record(ctx, f); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := repo.MarkReplayed(ctx, 1); err != nil {
		t.Fatalf("MarkReplayed() error = %v", err)
	}

	tests := []struct {
		name            string
		limit           int
		includeReplayed bool
		wantNotes       []int64
	}{
		{name: "pending only", limit: 10, wantNotes: []int64{3, 2}},
		{name: "include replayed", limit: 10, includeReplayed: true, wantNotes: []int64{3, 2, 1}},
		{name: "limited", limit: 1, includeReplayed: true, wantNotes: []int64{3}},
		{name: "default limit", limit: 0, wantNotes: []int64{3, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.limit, tt.includeReplayed)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantNotes) {
				t.Fatalf("List() len = %d, want %d", len(got), len(tt.wantNotes))
			}
			for i, f := range got {
				if f.NoteID != tt.wantNotes[i] {
					t.Errorf("List()[%d].NoteID = %d, want %d", i, f.NoteID, tt.wantNotes[i])
				}
			}
		})
	}
}

func TestFailureRepo_ListEmpty(t *testing.T) {
	repo := newTestDB(t)

	got, err := repo.List(context.Background(), 10, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %v, want empty slice", got)
	}
}

func TestFailureRepo_MarkReplayed(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	replayedAt := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return replayedAt }

	f := &Failure{MessageID: "m", EventType: "note.deleted", Attempts: 1, LastError: "x"}
	if err := repo.Record(ctx, f); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.MarkReplayed(ctx, f.ID); err != nil {
		t.Fatalf("MarkReplayed() error = %v", err)
	}

	got, err := repo.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Replayed() || !got.ReplayedAt.Equal(replayedAt) {
		t.Errorf("ReplayedAt = %v, want %v", got.ReplayedAt, replayedAt)
	}

	if err := repo.MarkReplayed(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkReplayed() unknown id error = %v, want ErrNotFound", err)
	}
}
