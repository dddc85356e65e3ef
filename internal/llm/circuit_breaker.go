package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ChatClient is the chat surface shared by Client and CircuitBreakerClient.
type ChatClient interface {
	ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error)
	ChatJSON(ctx context.Context, messages []Message, params ChatParams, out any) error
}

// BreakerConfig configures a CircuitBreakerClient.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
	// OnStateChange is called after the breaker changes state, if set.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns the breaker settings used for the search agent.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.6,
	}
}

// CircuitBreakerClient wraps a ChatClient with circuit breaking logic.
// While the breaker is open calls fail fast with gobreaker.ErrOpenState.
type CircuitBreakerClient struct {
	client ChatClient
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient creates a new circuit breaker client.
func NewCircuitBreakerClient(client ChatClient, cfg BreakerConfig) *CircuitBreakerClient {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
		// Cancelled requests say nothing about the health of the LLM.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

// ChatWithMessages implements ChatClient.
func (c *CircuitBreakerClient) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	resp, err := c.cb.Execute(func() (any, error) {
		return c.client.ChatWithMessages(ctx, messages, params)
	})
	if err != nil {
		return "", err
	}
	return resp.(string), nil
}

// ChatJSON implements ChatClient.
func (c *CircuitBreakerClient) ChatJSON(ctx context.Context, messages []Message, params ChatParams, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.ChatJSON(ctx, messages, params, out)
	})
	return err
}

// State reports the breaker's current state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}
