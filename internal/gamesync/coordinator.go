// Package gamesync keeps an in-memory FullGame in step with the remote feed.
//
// A Coordinator owns one aggregate. It folds the game node and the idea and
// session collections into it on a single goroutine and publishes a snapshot
// after every fold that changed something. Its write operations never touch
// the aggregate: a write becomes visible only when the feed echoes it back,
// which is what keeps the local view from diverging from the remote store
// and what makes inserts at-most-once.
package gamesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

type State int

const (
	StateCreated State = iota
	StateSubscribed
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubscribed:
		return "subscribed"
	case StateTornDown:
		return "torn_down"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Coordinator struct {
	feed   feed.Feed
	gameID string
	logger *slog.Logger

	aggregate *Observable[brainy.FullGame]

	// Owned by the run goroutine.
	agg      brainy.FullGame
	game     *GameWatcher
	ideas    *Reconciler[brainy.Idea]
	sessions *Reconciler[brainy.PlayerSession]

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCoordinator(f feed.Feed, catalog ChallengeCatalog, gameID string, logger *slog.Logger) *Coordinator {
	logger = logger.With("component", "coordinator", "game_id", gameID)
	c := &Coordinator{
		feed:      f,
		gameID:    gameID,
		logger:    logger,
		aggregate: NewObservable(brainy.FullGame{}),
	}
	c.game = NewGameWatcher(f, gameID, catalog, logger, func(g brainy.Game, ch brainy.Challenge) {
		c.agg.Game = g
		c.agg.Challenge = ch
		c.publish()
	})
	c.ideas = NewReconciler(f, IdeasPath(gameID), gameID, IdeaKeying, logger, func(items []brainy.Idea) {
		c.agg.Ideas = items
		c.publish()
	})
	c.sessions = NewReconciler(f, SessionsPath(gameID), gameID, SessionKeying, logger, func(items []brainy.PlayerSession) {
		c.agg.Sessions = items
		c.publish()
	})
	return c
}

func (c *Coordinator) publish() {
	c.aggregate.Publish(c.agg.Clone())
}

func (c *Coordinator) GameID() string { return c.gameID }

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Aggregate exposes the folded game. Subscribers get the current snapshot
// at once, even if it is still empty, and then one snapshot per fold. A
// subscriber that falls more than 16 snapshots behind loses the oldest ones;
// the latest snapshot is always delivered. Every snapshot is a complete
// aggregate, so a skipped one carries nothing the next does not.
func (c *Coordinator) Aggregate() *Observable[brainy.FullGame] {
	return c.aggregate
}

// Snapshot returns the latest published aggregate.
func (c *Coordinator) Snapshot() brainy.FullGame {
	return c.aggregate.Value()
}

// Register opens the three subscriptions and starts folding. The
// subscriptions live until Deregister is called or ctx is cancelled.
// Registering an already subscribed coordinator is a no-op.
func (c *Coordinator) Register(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSubscribed:
		return nil
	case StateTornDown:
		return ErrTornDown
	}

	ctx, cancel := context.WithCancel(ctx)
	gameCh, err := c.feed.SubscribeValue(ctx, GamePath(c.gameID))
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to game: %w", err)
	}
	ideaCh, err := c.feed.SubscribeChildren(ctx, IdeasPath(c.gameID))
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to ideas: %w", err)
	}
	sessionCh, err := c.feed.SubscribeChildren(ctx, SessionsPath(c.gameID))
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to sessions: %w", err)
	}

	c.state = StateSubscribed
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, gameCh, ideaCh, sessionCh)

	c.logger.Info("coordinator registered")
	return nil
}

// Deregister cancels the subscriptions and waits for the fold loop to stop.
// The aggregate keeps its last value. It is safe to call more than once.
func (c *Coordinator) Deregister() {
	c.mu.Lock()
	prev := c.state
	c.state = StateTornDown
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if prev == StateSubscribed {
		c.logger.Info("coordinator deregistered")
	}
}

func (c *Coordinator) run(ctx context.Context, gameCh <-chan feed.NodeEvent, ideaCh, sessionCh <-chan feed.ChildEvent) {
	defer close(c.done)
	defer func() {
		c.mu.Lock()
		c.state = StateTornDown
		c.mu.Unlock()
	}()

	for gameCh != nil || ideaCh != nil || sessionCh != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-gameCh:
			if !ok {
				gameCh = nil
				continue
			}
			c.fold(ctx, func() { c.game.Apply(ev) })
		case ev, ok := <-ideaCh:
			if !ok {
				ideaCh = nil
				continue
			}
			c.fold(ctx, func() { c.ideas.Apply(ev) })
		case ev, ok := <-sessionCh:
			if !ok {
				sessionCh = nil
				continue
			}
			c.fold(ctx, func() { c.sessions.Apply(ev) })
		}
	}
}

// fold runs apply unless teardown has begun. Deregister flips the state under
// the same lock, so no event is folded once it has returned from that step.
func (c *Coordinator) fold(ctx context.Context, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSubscribed || ctx.Err() != nil {
		return
	}
	apply()
}

// InsertIdea writes a new idea and returns it with its assigned id. The
// player name is filled from the player's session when the aggregate has
// one.
func (c *Coordinator) InsertIdea(ctx context.Context, idea brainy.Idea) (brainy.Idea, error) {
	if !idea.Origin.Valid() {
		err := fmt.Errorf("%w: unknown origin %q", ErrValidation, idea.Origin)
		c.logger.Warn("insert rejected", "error", err)
		return idea, err
	}
	if s, ok := c.Snapshot().SessionByUser(idea.PlayerID); ok {
		idea.PlayerName = s.Name
	}
	return c.ideas.Insert(ctx, idea)
}

func (c *Coordinator) InsertPlayerSession(ctx context.Context, s brainy.PlayerSession) (brainy.PlayerSession, error) {
	if s.UserID == "" {
		err := fmt.Errorf("%w: session without user id", ErrValidation)
		c.logger.Warn("insert rejected", "error", err)
		return s, err
	}
	return c.sessions.Insert(ctx, s)
}

// UpdateGame replaces the game node. g must be the complete record.
func (c *Coordinator) UpdateGame(ctx context.Context, g brainy.Game) error {
	if !g.Step.Valid() {
		err := fmt.Errorf("%w: unknown step %q", ErrValidation, g.Step)
		c.logger.Warn("update rejected", "error", err)
		return err
	}
	return c.game.UpdateRemote(ctx, g)
}

// UpdateIdea replaces an existing idea. idea must be the complete record.
func (c *Coordinator) UpdateIdea(ctx context.Context, idea brainy.Idea) error {
	if !idea.Origin.Valid() {
		err := fmt.Errorf("%w: unknown origin %q", ErrValidation, idea.Origin)
		c.logger.Warn("update rejected", "error", err)
		return err
	}
	return c.ideas.Update(ctx, idea)
}

func (c *Coordinator) UpdatePlayerSession(ctx context.Context, s brainy.PlayerSession) error {
	return c.sessions.Update(ctx, s)
}
