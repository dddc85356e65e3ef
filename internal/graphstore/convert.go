package graphstore

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case neo4j.LocalDateTime:
		return t.Time()
	case neo4j.Date:
		return t.Time()
	default:
		return time.Time{}
	}
}

func noteFromRow(row map[string]any) Note {
	return Note{
		NoteID:    asInt64(row["note_id"]),
		UserID:    asInt64(row["user_id"]),
		Title:     asString(row["title"]),
		CreatedAt: asTime(row["created_at"]),
		UpdatedAt: asTime(row["updated_at"]),
	}
}

func scoredNoteFromRow(row map[string]any) ScoredNote {
	return ScoredNote{
		Note:  noteFromRow(row),
		Score: asFloat64(row["similarity_score"]),
	}
}
