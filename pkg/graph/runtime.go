package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
	"github.com/mcs-logistics/shipmentqa/pkg/scope"
	"github.com/mcs-logistics/shipmentqa/pkg/session"
)

const (
	defaultTurnTimeout = 60 * time.Second

	// maxSteps bounds the node loop as a last line of defense. The per-node
	// retry ceilings keep real turns far below this.
	maxSteps = 32
)

// Config holds runtime tunables.
type Config struct {
	// TurnTimeout is the wall-clock budget for a whole turn.
	TurnTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = defaultTurnTimeout
	}
}

// Runtime executes conversation turns against the transition table.
type Runtime struct {
	cfg    Config
	store  session.Store
	scopes *scope.Resolver
	nodes  map[string]Node
	now    func() time.Time
}

// NewRuntime builds a runtime over the given node set. Every node reachable
// from the transition table must be registered; Verify reports gaps.
func NewRuntime(cfg Config, store session.Store, scopes *scope.Resolver, nodes []Node) (*Runtime, error) {
	cfg.applyDefaults()
	r := &Runtime{
		cfg:    cfg,
		store:  store,
		scopes: scopes,
		nodes:  make(map[string]Node, len(nodes)),
		now:    time.Now,
	}
	for _, n := range nodes {
		if _, dup := r.nodes[n.Name()]; dup {
			return nil, fmt.Errorf("duplicate node %q", n.Name())
		}
		r.nodes[n.Name()] = n
	}
	if err := r.verify(); err != nil {
		return nil, err
	}
	return r, nil
}

// verify checks that every target in the transition table has a registered
// node, so a missing registration fails at startup instead of mid-turn.
func (r *Runtime) verify() error {
	for key, target := range transitions {
		if _, ok := r.nodes[key.node]; !ok {
			return fmt.Errorf("transition source %q has no registered node", key.node)
		}
		if target == terminal {
			continue
		}
		if _, ok := r.nodes[target]; !ok {
			return fmt.Errorf("transition target %q has no registered node", target)
		}
	}
	return nil
}

// RunTurn processes one user message for the given conversation and returns
// the updated state. Concurrent turns on the same conversation id are
// serialized through the session store's lock; the state is persisted (or
// deleted, on an end intent) before the lock is released.
func (r *Runtime) RunTurn(ctx context.Context, conversationID, principalID, userText string) (*models.ConversationState, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	unlock, err := r.store.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	state, err := r.store.Get(ctx, conversationID)
	if errors.Is(err, session.ErrNotFound) {
		now := r.now()
		state = &models.ConversationState{
			ConversationID: conversationID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	state.BeginTurn(userText, r.now())

	// Scope is resolved fresh every turn so registry changes take effect
	// without restarting conversations.
	state.Scope = r.scopes.Resolve(principalID)
	state.RoutePath = append(state.RoutePath, "scope")
	if !state.Scope.Permits() {
		state.Intent = models.IntentStaticInfo
		state.Answer = "I can't answer shipment questions for this account because no consignee access is configured. Please contact your administrator."
		state.AddNotice("access denied: no consignee scope resolved for principal")
		slog.Warn("turn denied, principal has no scope",
			"conversation_id", conversationID,
			"principal_id", principalID,
		)
		return r.finishTurn(ctx, state)
	}

	turnCtx, cancel := context.WithTimeout(ctx, r.cfg.TurnTimeout)
	defer cancel()

	if err := r.runMachine(turnCtx, state); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTurnTimeout) {
			state.AddNotice("the request took too long and was cut short")
			if state.Answer == "" {
				state.Answer = "Sorry, that took longer than I'm allowed to spend. Please try a narrower question."
			}
			slog.Warn("turn timed out",
				"conversation_id", conversationID,
				"route", state.RoutePath,
			)
			// Persist what we have; the caller still gets a usable state
			// alongside the typed error.
			if _, finishErr := r.finishTurn(ctx, state); finishErr != nil {
				slog.Error("failed to persist timed-out turn", "conversation_id", conversationID, "error", finishErr)
			}
			return state, ErrTurnTimeout
		}
		return nil, err
	}

	return r.finishTurn(ctx, state)
}

// runMachine walks the transition table from the normalizer until a
// terminal edge. Node errors that are not typed control-flow signals
// surface here and fail the turn.
func (r *Runtime) runMachine(ctx context.Context, state *models.ConversationState) error {
	current := NodeNormalizer
	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return fmt.Errorf("machine exceeded %d steps, route %v", maxSteps, state.RoutePath)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		node := r.nodes[current]
		state.RoutePath = append(state.RoutePath, current)

		started := r.now()
		outcome, err := node.Run(ctx, state)
		slog.Debug("node finished",
			"conversation_id", state.ConversationID,
			"node", current,
			"outcome", string(outcome),
			"duration_ms", r.now().Sub(started).Milliseconds(),
		)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("node %s failed: %w", current, err)
		}

		next, ok := transitions[transitionKey{node: current, outcome: outcome}]
		if !ok {
			return &ErrNoTransition{Node: current, Outcome: outcome}
		}
		if next == terminal {
			return nil
		}
		current = next
	}
}

// finishTurn closes out history and persists or deletes the state.
func (r *Runtime) finishTurn(ctx context.Context, state *models.ConversationState) (*models.ConversationState, error) {
	state.EndTurn(r.now())

	if state.Intent == models.IntentEnd {
		if err := r.store.Delete(ctx, state.ConversationID); err != nil {
			slog.Error("failed to delete ended conversation", "conversation_id", state.ConversationID, "error", err)
		}
		return state, nil
	}
	if err := r.store.Put(ctx, state.ConversationID, state); err != nil {
		return nil, fmt.Errorf("failed to persist conversation %s: %w", state.ConversationID, err)
	}
	return state, nil
}
