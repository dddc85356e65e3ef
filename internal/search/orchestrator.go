// Package search answers natural-language queries over a user's notes.
//
// A query moves through fixed stages, each taking and returning a State:
// PreFilter classifies it, SimpleLookup or SimilaritySearch retrieve notes,
// RelevanceCheck filters similarity hits and GenerateResponse writes the answer.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/llm"
	"knowledge-graph-service/internal/planner"
)

var errNoLLM = errors.New("chat client required")

// Config tunes the orchestrator.
type Config struct {
	// TopK caps the documents in a Result.
	TopK int
	// SearchLimit is the row limit of retrieval queries.
	SearchLimit int
	// RelevanceConcurrency sizes the relevance judge pool. The pool is shared
	// by all searches, so it caps in-flight judge calls for the process.
	RelevanceConcurrency int
	// Temperature applies to every chat call.
	Temperature float32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder reports each completed search to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock replaces time.Now in the PreFilter prompt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs the search stages.
type Orchestrator struct {
	chat     llm.ChatClient
	embedder Embedder
	notes    NoteFinder
	pool     *ants.Pool
	cfg      Config
	loc      *time.Location
	now      func() time.Time
	recorder Recorder
}

// NewOrchestrator creates an Orchestrator. Release must be called to free its worker pool.
func NewOrchestrator(chat llm.ChatClient, embedder Embedder, notes NoteFinder, cfg Config, opts ...Option) (*Orchestrator, error) {
	if chat == nil {
		return nil, errNoLLM
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	if cfg.RelevanceConcurrency <= 0 {
		cfg.RelevanceConcurrency = cfg.SearchLimit
	}

	pool, err := ants.NewPool(cfg.RelevanceConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create relevance pool: %w", err)
	}

	o := &Orchestrator{
		chat:     chat,
		embedder: embedder,
		notes:    notes,
		pool:     pool,
		cfg:      cfg,
		loc:      seoul(),
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Release frees the worker pool.
func (o *Orchestrator) Release() {
	o.pool.Release()
}

// Search runs every stage for query and never fails; degraded stages yield
// fewer documents or a canned response.
func (o *Orchestrator) Search(ctx context.Context, userID int64, query string) Result {
	logger := contextutil.LoggerFromContext(ctx).With("user_id", userID)
	ctx = contextutil.WithLogger(ctx, logger)
	start := time.Now()

	state := State{UserID: userID, OriginalQuery: strings.TrimSpace(query)}
	if state.OriginalQuery == "" {
		logger.WarnContext(ctx, "empty search query")
		return Result{Documents: []Document{}}
	}

	state = o.preFilter(ctx, state)
	switch state.SearchType {
	case TypeDirectAnswer:
	case TypeSimpleLookup:
		state = o.simpleLookup(ctx, state)
	default:
		state = o.similaritySearch(ctx, state)
		state = o.relevanceCheck(ctx, state)
	}
	state = o.generateResponse(ctx, state)

	result := o.end(state)
	elapsed := time.Since(start)
	o.recorder.RecordSearch(string(state.SearchType), len(result.Documents), elapsed)
	logger.InfoContext(ctx, "search completed",
		"search_type", state.SearchType,
		"documents", len(result.Documents),
		"duration_ms", elapsed.Milliseconds(),
	)
	return result
}

type preFilterOutput struct {
	Timespan   *planner.TimeSpan `json:"timespan"`
	SearchType string            `json:"search_type"`
	Query      string            `json:"query"`
}

func (o *Orchestrator) preFilter(ctx context.Context, state State) State {
	logger := contextutil.LoggerFromContext(ctx)

	var out preFilterOutput
	err := o.chat.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: preFilterPrompt(newTimeContext(o.now(), o.loc))},
		{Role: llm.RoleUser, Content: state.OriginalQuery},
	}, o.params(), &out)
	if err != nil {
		logger.WarnContext(ctx, "pre-filter failed, answering directly", "error", err)
		state.SearchType = TypeDirectAnswer
		state.RewrittenQuery = state.OriginalQuery
		state.TimeFilter = nil
		return state
	}

	state.SearchType = parseType(out.SearchType)
	state.TimeFilter = normalizeSpan(out.Timespan, o.loc)
	state.RewrittenQuery = state.OriginalQuery
	if state.SearchType == TypeSimilarity {
		state.RewrittenQuery = strings.TrimSpace(out.Query)
	}

	logger.DebugContext(ctx, "pre-filter classified query",
		"search_type", state.SearchType,
		"raw_search_type", out.SearchType,
		"has_time_filter", state.TimeFilter != nil,
		"rewritten_query", state.RewrittenQuery,
	)
	return state
}

func (o *Orchestrator) simpleLookup(ctx context.Context, state State) State {
	logger := contextutil.LoggerFromContext(ctx)

	notes, err := o.notes.FindByTime(ctx, state.UserID, state.TimeFilter, o.cfg.SearchLimit)
	if err != nil {
		logger.ErrorContext(ctx, "simple lookup failed", "error", err)
		state.Documents = []Document{}
		return state
	}

	docs := make([]Document, 0, len(notes))
	for _, n := range notes {
		docs = append(docs, Document{NoteID: n.NoteID, Title: n.Title, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt})
	}
	state.Documents = docs
	logger.DebugContext(ctx, "simple lookup completed", "documents", len(docs))
	return state
}

func (o *Orchestrator) similaritySearch(ctx context.Context, state State) State {
	logger := contextutil.LoggerFromContext(ctx)
	state.Documents = []Document{}

	if state.RewrittenQuery == "" {
		logger.WarnContext(ctx, "similarity search skipped, empty query")
		return state
	}

	embedding, tokens, err := o.embedder.Embed(ctx, state.RewrittenQuery)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return state
	}

	notes, err := o.notes.FindBySimilarity(ctx, state.UserID, embedding, state.TimeFilter, o.cfg.SearchLimit)
	if err != nil {
		logger.ErrorContext(ctx, "similarity search failed", "error", err)
		return state
	}

	docs := make([]Document, 0, len(notes))
	for _, n := range notes {
		score := n.Score
		docs = append(docs, Document{
			NoteID:          n.NoteID,
			Title:           n.Title,
			CreatedAt:       n.CreatedAt,
			UpdatedAt:       n.UpdatedAt,
			SimilarityScore: &score,
		})
	}
	state.Documents = docs
	logger.DebugContext(ctx, "similarity search completed", "documents", len(docs), "query_tokens", tokens)
	return state
}

type relevanceOutput struct {
	IsRelevant bool `json:"is_relevant"`
}

// relevanceCheck judges every document concurrently and keeps the relevant
// ones in their original order. A failed judge drops its document.
func (o *Orchestrator) relevanceCheck(ctx context.Context, state State) State {
	logger := contextutil.LoggerFromContext(ctx)

	if len(state.Documents) == 0 || state.OriginalQuery == "" {
		return state
	}

	keep := make([]bool, len(state.Documents))
	var wg sync.WaitGroup
	for i, doc := range state.Documents {
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			keep[i] = o.judge(ctx, state.OriginalQuery, doc)
		})
		if err != nil {
			wg.Done()
			logger.WarnContext(ctx, "failed to submit relevance judge", "note_id", doc.NoteID, "error", err)
		}
	}
	wg.Wait()

	filtered := make([]Document, 0, len(state.Documents))
	for i, doc := range state.Documents {
		if keep[i] {
			filtered = append(filtered, doc)
		}
	}
	logger.DebugContext(ctx, "relevance check completed", "kept", len(filtered), "checked", len(state.Documents))

	state.Documents = filtered
	return state
}

func (o *Orchestrator) judge(ctx context.Context, query string, doc Document) bool {
	var out relevanceOutput
	err := o.chat.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: relevanceSystemPrompt},
		{Role: llm.RoleUser, Content: relevancePrompt(query, doc.Title)},
	}, o.params(), &out)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "relevance judge failed", "note_id", doc.NoteID, "error", err)
		return false
	}
	return out.IsRelevant
}

func (o *Orchestrator) generateResponse(ctx context.Context, state State) State {
	logger := contextutil.LoggerFromContext(ctx)

	if state.SearchType == TypeDirectAnswer {
		text, err := o.chat.ChatWithMessages(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: directAnswerSystemPrompt},
			{Role: llm.RoleUser, Content: state.OriginalQuery},
		}, o.params())
		if err != nil || text == "" {
			logger.WarnContext(ctx, "direct answer failed, using redirect message", "error", err)
			text = redirectMessage
		}
		state.Documents = []Document{}
		state.ResponseText = text
		return state
	}

	if len(state.Documents) == 0 {
		state.ResponseText = noResultsMessage
		return state
	}

	top := state.Documents
	if len(top) > o.cfg.TopK {
		top = top[:o.cfg.TopK]
	}
	titles := make([]string, len(top))
	for i, d := range top {
		titles[i] = d.Title
	}

	text, err := o.chat.ChatWithMessages(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: responseSystemPrompt},
		{Role: llm.RoleUser, Content: responsePrompt(state.OriginalQuery, titles)},
	}, o.params())
	if err != nil || text == "" {
		logger.WarnContext(ctx, "response generation failed, using fallback", "error", err)
		text = fallbackResponse(state.Documents)
	}
	state.ResponseText = text
	return state
}

func (o *Orchestrator) end(state State) Result {
	docs := state.Documents
	if docs == nil {
		docs = []Document{}
	}
	if len(docs) > o.cfg.TopK {
		docs = docs[:o.cfg.TopK]
	}
	return Result{ResponseText: state.ResponseText, Documents: docs}
}

func (o *Orchestrator) params() llm.ChatParams {
	return llm.ChatParams{Temperature: o.cfg.Temperature}
}
