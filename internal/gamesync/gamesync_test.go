package gamesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingFeed counts writes and can be told to reject them.
type recordingFeed struct {
	feed.Feed

	mu      sync.Mutex
	writes  []string
	failErr error
}

func newRecordingFeed() *recordingFeed {
	return &recordingFeed{Feed: feed.NewMemory()}
}

func (f *recordingFeed) Write(ctx context.Context, path string, v any) error {
	f.mu.Lock()
	f.writes = append(f.writes, path)
	fail := f.failErr
	f.mu.Unlock()
	if fail != nil {
		return fail
	}
	return f.Feed.Write(ctx, path, v)
}

func (f *recordingFeed) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newIdeaReconciler(f feed.Feed, changes *int) *Reconciler[brainy.Idea] {
	return NewReconciler(f, IdeasPath("g1"), "g1", IdeaKeying, discard, func([]brainy.Idea) {
		if changes != nil {
			*changes++
		}
	})
}

func TestReconcilerIdempotentAdd(t *testing.T) {
	changes := 0
	r := newIdeaReconciler(feed.NewMemory(), &changes)

	idea := brainy.Idea{ID: "k1", GameID: "g1", Title: "first"}
	if !r.OnAdded("k1", idea) {
		t.Fatal("first add reported no change")
	}
	if r.OnAdded("k1", idea) {
		t.Error("second add reported a change")
	}

	if got := len(r.Items()); got != 1 {
		t.Fatalf("items = %d, want 1", got)
	}
	if changes != 1 {
		t.Errorf("change notifications = %d, want 1", changes)
	}
}

func TestReconcilerChangePreservesPosition(t *testing.T) {
	r := newIdeaReconciler(feed.NewMemory(), nil)
	r.OnAdded("a", brainy.Idea{GameID: "g1"})
	r.OnAdded("b", brainy.Idea{GameID: "g1"})
	r.OnAdded("c", brainy.Idea{GameID: "g1"})

	if !r.OnChanged("b", brainy.Idea{GameID: "g1", Title: "edited"}) {
		t.Fatal("change reported no change")
	}
	items := r.Items()
	if items[1].ID != "b" || items[1].Title != "edited" {
		t.Errorf("items[1] = %+v, want edited b", items[1])
	}

	if r.OnChanged("zzz", brainy.Idea{GameID: "g1"}) {
		t.Error("change for unknown key was applied")
	}
	if len(r.Items()) != 3 {
		t.Errorf("items = %d, want 3", len(r.Items()))
	}
}

func TestReconcilerOutOfOrderRemove(t *testing.T) {
	changes := 0
	r := newIdeaReconciler(feed.NewMemory(), &changes)
	r.OnAdded("a", brainy.Idea{GameID: "g1"})
	changes = 0

	if r.OnRemoved("never-added") {
		t.Error("remove of unknown key reported a change")
	}
	if len(r.Items()) != 1 || changes != 0 {
		t.Errorf("items = %d, changes = %d; want 1, 0", len(r.Items()), changes)
	}

	if !r.OnRemoved("a") {
		t.Error("remove of known key reported no change")
	}
	if len(r.Items()) != 0 {
		t.Errorf("items = %d, want 0", len(r.Items()))
	}
}

func TestReconcilerApply(t *testing.T) {
	r := newIdeaReconciler(feed.NewMemory(), nil)

	tests := []struct {
		name    string
		ev      feed.ChildEvent
		changed bool
		want    int
	}{
		{"add", feed.ChildEvent{Type: feed.ChildAdded, Key: "a", Value: json.RawMessage(`{"origin":"BRAINSTORM"}`)}, true, 1},
		{"undecodable", feed.ChildEvent{Type: feed.ChildAdded, Key: "b", Value: json.RawMessage(`{"votes":"many"}`)}, false, 1},
		{"foreign game", feed.ChildEvent{Type: feed.ChildAdded, Key: "c", Value: json.RawMessage(`{"gameId":"other"}`)}, false, 1},
		{"change", feed.ChildEvent{Type: feed.ChildChanged, Key: "a", Value: json.RawMessage(`{"votes":2}`)}, true, 1},
		{"remove", feed.ChildEvent{Type: feed.ChildRemoved, Key: "a"}, true, 0},
	}
	for _, tt := range tests {
		if got := r.Apply(tt.ev); got != tt.changed {
			t.Errorf("%s: changed = %v, want %v", tt.name, got, tt.changed)
		}
		if got := len(r.Items()); got != tt.want {
			t.Errorf("%s: items = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestReconcilerStampsIdentity(t *testing.T) {
	r := newIdeaReconciler(feed.NewMemory(), nil)
	r.OnAdded("k9", brainy.Idea{})
	got := r.Items()[0]
	if got.ID != "k9" || got.GameID != "g1" {
		t.Errorf("got id %q game %q, want k9 g1", got.ID, got.GameID)
	}
}

func TestInsertThenEcho(t *testing.T) {
	f := newRecordingFeed()
	r := newIdeaReconciler(f, nil)

	stamped, err := r.Insert(context.Background(), brainy.Idea{Origin: brainy.OriginBrainstorm, Title: "x"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stamped.ID == "" || stamped.GameID != "g1" {
		t.Fatalf("stamped = %+v", stamped)
	}
	if len(r.Items()) != 0 {
		t.Fatal("insert mutated the list before the echo")
	}

	data, ok, err := f.ReadOnce(context.Background(), feed.Join(IdeasPath("g1"), stamped.ID))
	if err != nil || !ok {
		t.Fatalf("written node missing: ok=%v err=%v", ok, err)
	}
	r.Apply(feed.ChildEvent{Type: feed.ChildAdded, Key: stamped.ID, Value: data})
	r.Apply(feed.ChildEvent{Type: feed.ChildAdded, Key: stamped.ID, Value: data})

	items := r.Items()
	if len(items) != 1 || items[0].ID != stamped.ID || items[0].Title != "x" {
		t.Errorf("items = %+v", items)
	}
}

func TestInsertRejectsForeignGame(t *testing.T) {
	f := newRecordingFeed()
	r := newIdeaReconciler(f, nil)

	_, err := r.Insert(context.Background(), brainy.Idea{GameID: "other"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if n := f.writeCount(); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestInsertWriteRejected(t *testing.T) {
	f := newRecordingFeed()
	f.failErr = errors.New("permission denied")
	r := newIdeaReconciler(f, nil)

	_, err := r.Insert(context.Background(), brainy.Idea{})
	if !errors.Is(err, ErrWriteRejected) {
		t.Errorf("err = %v, want ErrWriteRejected", err)
	}
	if len(r.Items()) != 0 {
		t.Error("rejected insert changed the list")
	}
}

func TestUpdateValidation(t *testing.T) {
	tests := []struct {
		name string
		idea brainy.Idea
	}{
		{"foreign game", brainy.Idea{ID: "a", GameID: "other"}},
		{"missing id", brainy.Idea{GameID: "g1"}},
		{"missing game", brainy.Idea{ID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRecordingFeed()
			r := newIdeaReconciler(f, nil)

			err := r.Update(context.Background(), tt.idea)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			if n := f.writeCount(); n != 0 {
				t.Errorf("writes = %d, want 0", n)
			}
		})
	}
}

func TestUpdateStaleTarget(t *testing.T) {
	f := newRecordingFeed()
	r := newIdeaReconciler(f, nil)

	err := r.Update(context.Background(), brainy.Idea{ID: "gone", GameID: "g1"})
	if !errors.Is(err, ErrStaleTarget) {
		t.Errorf("err = %v, want ErrStaleTarget", err)
	}
	if n := f.writeCount(); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

// mutableCatalog lets a test populate the catalog after the game arrives.
type mutableCatalog struct {
	mu sync.Mutex
	m  map[string]brainy.Challenge
}

func (c *mutableCatalog) CurrentChallenges() map[string]brainy.Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]brainy.Challenge, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

func (c *mutableCatalog) set(ch brainy.Challenge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]brainy.Challenge)
	}
	c.m[ch.ID] = ch
}

func TestChallengeResolutionRace(t *testing.T) {
	catalog := &mutableCatalog{}
	prior := brainy.Challenge{ID: "prior", Title: "Prior"}
	catalog.set(prior)

	var gotChallenge brainy.Challenge
	w := NewGameWatcher(feed.NewMemory(), "g1", catalog, discard, func(_ brainy.Game, ch brainy.Challenge) {
		gotChallenge = ch
	})

	first, _ := json.Marshal(brainy.Game{ID: "g1", ChallengeID: "prior"})
	w.Apply(feed.NodeEvent{Path: GamePath("g1"), Value: first, Exists: true})
	if gotChallenge.ID != "prior" {
		t.Fatalf("challenge = %q, want prior", gotChallenge.ID)
	}

	next, _ := json.Marshal(brainy.Game{ID: "g1", ChallengeID: "c1"})
	if !w.Apply(feed.NodeEvent{Path: GamePath("g1"), Value: next, Exists: true}) {
		t.Fatal("game event reported no change")
	}
	if gotChallenge.ID != "prior" {
		t.Errorf("challenge = %q, want prior value kept while catalog loads", gotChallenge.ID)
	}
	if w.Game().ChallengeID != "c1" {
		t.Errorf("game challenge id = %q, want c1", w.Game().ChallengeID)
	}

	catalog.set(brainy.Challenge{ID: "c1", Title: "Lunch"})
	w.Apply(feed.NodeEvent{Path: GamePath("g1"), Value: next, Exists: true})
	if gotChallenge.ID != "c1" || gotChallenge.Title != "Lunch" {
		t.Errorf("challenge = %+v, want c1", gotChallenge)
	}
}

func TestGameWatcherDropsBadEvents(t *testing.T) {
	w := NewGameWatcher(feed.NewMemory(), "g1", StaticCatalog{}, discard, nil)

	tests := []struct {
		name string
		ev   feed.NodeEvent
	}{
		{"missing", feed.NodeEvent{Exists: false}},
		{"undecodable", feed.NodeEvent{Value: json.RawMessage(`{"pin":"abc"}`), Exists: true}},
		{"other game", feed.NodeEvent{Value: json.RawMessage(`{"id":"g2"}`), Exists: true}},
	}
	for _, tt := range tests {
		if w.Apply(tt.ev) {
			t.Errorf("%s: event was applied", tt.name)
		}
	}
	if w.Game().ID != "" {
		t.Errorf("game = %+v, want zero", w.Game())
	}
}

func TestGameWatcherUpdateRemote(t *testing.T) {
	f := newRecordingFeed()
	w := NewGameWatcher(f, "g1", StaticCatalog{}, discard, nil)
	ctx := context.Background()

	if err := w.UpdateRemote(ctx, brainy.Game{ID: "g2"}); !errors.Is(err, ErrValidation) {
		t.Errorf("foreign game: err = %v, want ErrValidation", err)
	}
	if err := w.UpdateRemote(ctx, brainy.Game{ID: "g1"}); !errors.Is(err, ErrStaleTarget) {
		t.Errorf("missing game: err = %v, want ErrStaleTarget", err)
	}
	if n := f.writeCount(); n != 0 {
		t.Fatalf("writes = %d, want 0", n)
	}

	f.Feed.Write(ctx, GamePath("g1"), brainy.Game{ID: "g1"})
	if err := w.UpdateRemote(ctx, brainy.Game{ID: "g1", Step: brainy.StepVoteIdea}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := f.writeCount(); n != 1 {
		t.Errorf("writes = %d, want 1", n)
	}
}

func TestObservable(t *testing.T) {
	o := NewObservable(1)
	ch := o.Subscribe()
	if v := <-ch; v != 1 {
		t.Fatalf("initial = %d, want 1", v)
	}

	o.Publish(2)
	if v := <-ch; v != 2 {
		t.Errorf("got %d, want 2", v)
	}

	// A slow subscriber keeps only the newest buffered values and always
	// ends on the latest one.
	for i := 0; i < 100; i++ {
		o.Publish(100 + i)
	}
	var got []int
	for len(ch) > 0 {
		got = append(got, <-ch)
	}
	if len(got) != 16 || got[0] != 184 || got[len(got)-1] != 199 {
		t.Errorf("buffered = %v, want 184..199", got)
	}

	o.Unsubscribe(ch)
	o.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel not closed")
	}
	o.Publish(3)
	if o.Value() != 3 {
		t.Errorf("value = %d, want 3", o.Value())
	}
}

func TestPublishChallenge(t *testing.T) {
	f := feed.NewMemory()
	ctx := context.Background()

	lesson, err := PublishChallenge(ctx, f, brainy.Challenge{Title: "Video", Category: brainy.CategoryLesson})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, ok, _ := f.ReadOnce(ctx, feed.Join(LessonsFolder, lesson.ID)); !ok {
		t.Error("lesson not written under lessons")
	}

	if _, err := PublishChallenge(ctx, f, brainy.Challenge{Title: "bad"}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCatalogWatcher(t *testing.T) {
	f := feed.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	PublishChallenge(ctx, f, brainy.Challenge{ID: "c1", Title: "Commute", Category: brainy.CategoryChallenge})

	w := NewCatalogWatcher(f, discard)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	PublishChallenge(ctx, f, brainy.Challenge{ID: "l1", Title: "Intro", Category: brainy.CategoryLesson})

	deadline := time.Now().Add(2 * time.Second)
	for len(w.CurrentChallenges()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("catalog = %+v", w.CurrentChallenges())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := w.CurrentChallenges()["l1"].Category; got != brainy.CategoryLesson {
		t.Errorf("l1 category = %q, want LESSON", got)
	}

	f.Write(ctx, feed.Join(ChallengesFolder, "c1"), nil)
	for len(w.CurrentChallenges()) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("removal not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestCatalogWatcherLoad(t *testing.T) {
	f := feed.NewMemory()
	ctx := context.Background()

	PublishChallenge(ctx, f, brainy.Challenge{ID: "c1", Title: "Commute", Category: brainy.CategoryChallenge})
	PublishChallenge(ctx, f, brainy.Challenge{ID: "l1", Title: "Intro", Category: brainy.CategoryLesson})

	w := NewCatalogWatcher(f, discard)
	if err := w.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := w.CurrentChallenges()
	if len(got) != 2 {
		t.Fatalf("catalog = %+v, want 2 entries", got)
	}
	if got["c1"].Title != "Commute" || got["l1"].Category != brainy.CategoryLesson {
		t.Errorf("catalog = %+v", got)
	}

	// A game registered right after Load resolves its challenge on the
	// first game event.
	g, err := CreateGame(ctx, f, brainy.Game{ChallengeID: "c1", CreatorID: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := NewCoordinator(f, w, g.ID, discard)
	if err := c.Register(ctx); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer c.Deregister()

	ch := c.Aggregate().Subscribe()
	defer c.Aggregate().Unsubscribe(ch)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case fg := <-ch:
			if fg.Game.ID == "" {
				continue
			}
			if fg.Challenge.ID != "c1" {
				t.Fatalf("challenge = %+v, want c1 on first game fold", fg.Challenge)
			}
			return
		case <-timeout:
			t.Fatal("game never loaded")
		}
	}
}

func TestCreateGameAndFindByPin(t *testing.T) {
	f := feed.NewMemory()
	ctx := context.Background()

	if _, err := CreateGame(ctx, f, brainy.Game{CreatorID: "u1"}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	g, err := CreateGame(ctx, f, brainy.Game{ChallengeID: "c1", CreatorID: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.ID == "" || g.Step != brainy.StepGenIdea || g.Pin < 1000 || g.Pin > 9999 {
		t.Fatalf("game = %+v", g)
	}

	found, err := FindGameByPin(ctx, f, g.Pin)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != g.ID {
		t.Errorf("found %q, want %q", found.ID, g.ID)
	}

	if _, err := FindGameByPin(ctx, f, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSeedDemoCatalog(t *testing.T) {
	f := newRecordingFeed()
	ctx := context.Background()

	if err := SeedDemoCatalog(ctx, f, discard); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seeded := f.writeCount()
	if seeded != len(DemoCatalog) {
		t.Fatalf("writes = %d, want %d", seeded, len(DemoCatalog))
	}
	if _, ok, _ := f.ReadOnce(ctx, feed.Join(LessonsFolder, "demo-sketching")); !ok {
		t.Error("demo lesson missing")
	}

	if err := SeedDemoCatalog(ctx, f, discard); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if n := f.writeCount(); n != seeded {
		t.Errorf("second seed wrote %d more nodes", n-seeded)
	}
}
