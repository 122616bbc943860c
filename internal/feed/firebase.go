package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// Firebase is a feed over a Firebase Realtime Database. The Admin SDK has no
// streaming listeners, so subscriptions poll the node every interval and
// diff successive snapshots.
type Firebase struct {
	client   *db.Client
	interval time.Duration
	logger   *slog.Logger
}

type FirebaseConfig struct {
	DatabaseURL     string
	CredentialsFile string
	PollInterval    time.Duration
}

func NewFirebase(ctx context.Context, cfg FirebaseConfig, logger *slog.Logger) (*Firebase, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Firebase{
		client:   client,
		interval: interval,
		logger:   logger.With("component", "firebase_feed"),
	}, nil
}

func (f *Firebase) get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return nil, false, err
	}
	if !exists(raw) {
		return nil, false, nil
	}
	return raw, true, nil
}

func (f *Firebase) SubscribeValue(ctx context.Context, path string) (<-chan NodeEvent, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	cur, ok, err := f.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	q := newQueue[NodeEvent](ctx)
	q.push(NodeEvent{Path: path, Value: cur, Exists: ok})

	go f.poll(ctx, path, func() error {
		next, has, err := f.get(ctx, path)
		if err != nil {
			return err
		}
		if has == ok && (!has || sameJSON(cur, next)) {
			return nil
		}
		cur, ok = next, has
		q.push(NodeEvent{Path: path, Value: cur, Exists: ok})
		return nil
	})
	return q.out, nil
}

func (f *Firebase) SubscribeChildren(ctx context.Context, path string) (<-chan ChildEvent, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	cur, err := f.children(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	q := newQueue[ChildEvent](ctx)
	for _, ev := range diffChildren(nil, cur) {
		q.push(ev)
	}

	go f.poll(ctx, path, func() error {
		next, err := f.children(ctx, path)
		if err != nil {
			return err
		}
		for _, ev := range diffChildren(cur, next) {
			q.push(ev)
		}
		cur = next
		return nil
	})
	return q.out, nil
}

func (f *Firebase) children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	var kids map[string]json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &kids); err != nil {
		return nil, err
	}
	return kids, nil
}

func (f *Firebase) poll(ctx context.Context, path string, tick func() error) {
	t := time.NewTicker(f.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := tick(); err != nil && ctx.Err() == nil {
				f.logger.Warn("poll failed", "path", path, "error", err)
			}
		}
	}
}

func (f *Firebase) Write(ctx context.Context, path string, value any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	ref := f.client.NewRef(path)
	if data == nil {
		if err := ref.Delete(ctx); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		return nil
	}
	if err := ref.Set(ctx, data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (f *Firebase) PushKey(string) string {
	return NewPushKey()
}

func (f *Firebase) ReadOnce(ctx context.Context, path string) (json.RawMessage, bool, error) {
	if err := checkPath(path); err != nil {
		return nil, false, err
	}
	data, ok, err := f.get(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, ok, nil
}
