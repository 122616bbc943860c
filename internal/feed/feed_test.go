package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/brainy/internal/database"
	"github.com/playperu/brainy/internal/migrations"
)

type record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newSQLiteFeed(t *testing.T) *Local {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return NewSQLite(db)
}

func backends(t *testing.T) map[string]Feed {
	t.Helper()
	out := map[string]Feed{
		"memory": NewMemory(),
		"sqlite": newSQLiteFeed(t),
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		opt, err := redis.ParseURL(url)
		if err != nil {
			t.Fatalf("parsing REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		t.Cleanup(func() { rdb.Close() })
		r := NewRedis(rdb, slog.Default())
		r.prefix = "feedtest:" + NewPushKey() + ":"
		out["redis"] = r
	}
	return out
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func TestChildSubscription(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := f.Write(ctx, "ideas/g1/b", record{ID: "b"}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := f.Write(ctx, "ideas/g1/a", record{ID: "a"}); err != nil {
				t.Fatalf("write: %v", err)
			}

			ch, err := f.SubscribeChildren(ctx, "ideas/g1")
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}

			// Existing children replay in key order.
			for _, want := range []string{"a", "b"} {
				ev := recv(t, ch)
				if ev.Type != ChildAdded || ev.Key != want {
					t.Fatalf("got %s %s, want ADDED %s", ev.Type, ev.Key, want)
				}
			}

			if err := f.Write(ctx, "ideas/g1/a", record{ID: "a", Title: "new"}); err != nil {
				t.Fatalf("write: %v", err)
			}
			ev := recv(t, ch)
			if ev.Type != ChildChanged || ev.Key != "a" {
				t.Fatalf("got %s %s, want CHANGED a", ev.Type, ev.Key)
			}
			var rec record
			if err := json.Unmarshal(ev.Value, &rec); err != nil || rec.Title != "new" {
				t.Fatalf("value = %s (%v)", ev.Value, err)
			}

			if err := f.Write(ctx, "ideas/g1/b", nil); err != nil {
				t.Fatalf("remove: %v", err)
			}
			ev = recv(t, ch)
			if ev.Type != ChildRemoved || ev.Key != "b" {
				t.Fatalf("got %s %s, want REMOVED b", ev.Type, ev.Key)
			}

			// Writes to another collection are not delivered.
			if err := f.Write(ctx, "ideas/g2/x", record{ID: "x"}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := f.Write(ctx, "ideas/g1/c", record{ID: "c"}); err != nil {
				t.Fatalf("write: %v", err)
			}
			ev = recv(t, ch)
			if ev.Type != ChildAdded || ev.Key != "c" {
				t.Fatalf("got %s %s, want ADDED c", ev.Type, ev.Key)
			}

			cancel()
			deadline := time.After(2 * time.Second)
			for {
				select {
				case _, ok := <-ch:
					if !ok {
						return
					}
				case <-deadline:
					t.Fatal("channel not closed after cancel")
				}
			}
		})
	}
}

func TestValueSubscription(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			ch, err := f.SubscribeValue(ctx, "games/g1")
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			if ev := recv(t, ch); ev.Exists {
				t.Fatalf("expected missing node, got %s", ev.Value)
			}

			if err := f.Write(ctx, "games/g1", record{ID: "g1", Title: "one"}); err != nil {
				t.Fatalf("write: %v", err)
			}
			ev := recv(t, ch)
			if !ev.Exists {
				t.Fatal("expected node to exist")
			}
			var rec record
			if err := json.Unmarshal(ev.Value, &rec); err != nil || rec.Title != "one" {
				t.Fatalf("value = %s (%v)", ev.Value, err)
			}

			if err := f.Write(ctx, "games/g1", nil); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if ev := recv(t, ch); ev.Exists {
				t.Fatal("expected removal event")
			}
		})
	}
}

func TestReadOnce(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := f.ReadOnce(ctx, "games/missing"); err != nil || ok {
				t.Fatalf("missing node: ok=%v err=%v", ok, err)
			}

			f.Write(ctx, "games/g1", record{ID: "g1"})
			f.Write(ctx, "games/g2", record{ID: "g2"})

			data, ok, err := f.ReadOnce(ctx, "games/g1")
			if err != nil || !ok {
				t.Fatalf("read node: ok=%v err=%v", ok, err)
			}
			var rec record
			json.Unmarshal(data, &rec)
			if rec.ID != "g1" {
				t.Errorf("id = %q, want g1", rec.ID)
			}

			data, ok, err = f.ReadOnce(ctx, "games")
			if err != nil || !ok {
				t.Fatalf("read collection: ok=%v err=%v", ok, err)
			}
			var all map[string]record
			if err := json.Unmarshal(data, &all); err != nil {
				t.Fatalf("decode collection: %v", err)
			}
			if len(all) != 2 || all["g2"].ID != "g2" {
				t.Errorf("collection = %+v", all)
			}
		})
	}
}

func TestInvalidPath(t *testing.T) {
	f := NewMemory()
	for _, p := range []string{"", "/games", "games/", "games//x"} {
		if err := f.Write(context.Background(), p, record{}); err == nil {
			t.Errorf("Write(%q): expected error", p)
		}
	}
}

func TestPushKeysSortable(t *testing.T) {
	f := NewMemory()
	prev := f.PushKey("ideas")
	for range 100 {
		k := f.PushKey("ideas")
		if k <= prev {
			t.Fatalf("key %s not after %s", k, prev)
		}
		prev = k
	}
}

func TestJoinSplit(t *testing.T) {
	if got := Join("ideas-by-game/", "/g1", "", "i1"); got != "ideas-by-game/g1/i1" {
		t.Errorf("Join = %q", got)
	}
	parent, key := Split("ideas-by-game/g1/i1")
	if parent != "ideas-by-game/g1" || key != "i1" {
		t.Errorf("Split = %q, %q", parent, key)
	}
	parent, key = Split("games")
	if parent != "" || key != "games" {
		t.Errorf("Split top-level = %q, %q", parent, key)
	}
}
