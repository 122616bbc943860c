package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/database"
	"github.com/playperu/brainy/internal/feed"
	"github.com/playperu/brainy/internal/gamesync"
	"github.com/playperu/brainy/internal/migrations"
)

const version = "0.1.0"

const usage = `Brainy control.

Operates directly on a feed. With the sqlite feed, watch sees the stored
state and nothing written by other processes; use the redis feed to follow
a live game.

Usage:
    brainyctl seed [options] [<catalog>]
    brainyctl create-game [options] --challenge=<id> [--creator=<user_id>]
    brainyctl join [options] --pin=<pin> --name=<name> [--user=<user_id>]
    brainyctl idea [options] --game=<game_id> --title=<title>
        [--origin=<origin>] [--user=<user_id>]
    brainyctl watch [options] --game=<game_id>
    brainyctl -h | --help
    brainyctl --version

Options:
    -h --help               Show this screen.
    --version               Show version.
    --feed=<driver>         sqlite or redis [default: sqlite].
    --db=<path>             SQLite database [default: data/brainy.db].
    --redis=<url>           Redis URL [default: redis://localhost:6379/0].
    --challenge=<id>        Challenge the game is played on.
    --creator=<user_id>     Creator user id. A random one is used if omitted.
    --user=<user_id>        Player user id. A random one is used if omitted.
    --pin=<pin>             Join pin of the game.
    --name=<name>           Player name.
    --game=<game_id>        Game id.
    --title=<title>         Idea title.
    --origin=<origin>       Idea origin [default: BRAINSTORM].
    -v --verbose            Log at debug level.`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts docopt.Opts, stdout io.Writer) error {
	level := slog.LevelInfo
	if verbose, _ := opts.Bool("--verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	f, closeFeed, err := openFeed(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeFeed()

	c := &cli{feed: f, logger: logger, out: stdout}

	if seed, _ := opts.Bool("seed"); seed {
		return c.seed(ctx, opts)
	} else if create, _ := opts.Bool("create-game"); create {
		return c.createGame(ctx, opts)
	} else if join, _ := opts.Bool("join"); join {
		return c.join(ctx, opts)
	} else if idea, _ := opts.Bool("idea"); idea {
		return c.idea(ctx, opts)
	} else if watch, _ := opts.Bool("watch"); watch {
		return c.watch(ctx, opts)
	}
	return fmt.Errorf("no command given")
}

func openFeed(ctx context.Context, opts docopt.Opts, logger *slog.Logger) (feed.Feed, func(), error) {
	driver, _ := opts.String("--feed")

	switch driver {
	case "sqlite":
		path, _ := opts.String("--db")
		db, err := database.Open(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
		}
		if err := migrations.Run(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		return feed.NewSQLite(db), func() { db.Close() }, nil

	case "redis":
		rawURL, _ := opts.String("--redis")
		opt, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		rf := feed.NewRedis(rdb, logger)
		if err := rf.Ping(ctx); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("pinging redis: %w", err)
		}
		return rf, func() { rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown feed %q", driver)
}

type cli struct {
	feed   feed.Feed
	logger *slog.Logger
	out    io.Writer
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// seed publishes the challenges in a JSON array file, or the demo catalog
// when no file is given.
func (c *cli) seed(ctx context.Context, opts docopt.Opts) error {
	path, _ := opts.String("<catalog>")
	if path == "" {
		return gamesync.SeedDemoCatalog(ctx, c.feed, c.logger)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	var challenges []brainy.Challenge
	if err := json.Unmarshal(data, &challenges); err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}

	for _, ch := range challenges {
		ch, err := gamesync.PublishChallenge(ctx, c.feed, ch)
		if err != nil {
			return fmt.Errorf("publishing %q: %w", ch.Title, err)
		}
		c.logger.Info("published", "id", ch.ID, "category", ch.Category)
	}
	return nil
}

func (c *cli) createGame(ctx context.Context, opts docopt.Opts) error {
	challengeID, _ := opts.String("--challenge")
	creator, _ := opts.String("--creator")
	if creator == "" {
		creator = uuid.NewString()
	}

	g, err := gamesync.CreateGame(ctx, c.feed, brainy.Game{ChallengeID: challengeID, CreatorID: creator})
	if err != nil {
		return err
	}
	return c.print(g)
}

func (c *cli) join(ctx context.Context, opts docopt.Opts) error {
	pinStr, _ := opts.String("--pin")
	pin, err := strconv.Atoi(pinStr)
	if err != nil {
		return fmt.Errorf("pin must be a number: %q", pinStr)
	}
	name, _ := opts.String("--name")
	user, _ := opts.String("--user")
	if user == "" {
		user = uuid.NewString()
	}

	g, err := gamesync.FindGameByPin(ctx, c.feed, pin)
	if err != nil {
		return err
	}

	coord := gamesync.NewCoordinator(c.feed, gamesync.StaticCatalog{}, g.ID, c.logger)
	s, err := coord.InsertPlayerSession(ctx, brainy.PlayerSession{UserID: user, Name: name})
	if err != nil {
		return err
	}
	return c.print(s)
}

// idea waits briefly for the player's session to load so the idea carries
// the player's name.
func (c *cli) idea(ctx context.Context, opts docopt.Opts) error {
	gameID, _ := opts.String("--game")
	title, _ := opts.String("--title")
	origin, _ := opts.String("--origin")
	user, _ := opts.String("--user")

	coord := gamesync.NewCoordinator(c.feed, gamesync.StaticCatalog{}, gameID, c.logger)
	if err := coord.Register(ctx); err != nil {
		return err
	}
	defer coord.Deregister()

	if user != "" {
		ch := coord.Aggregate().Subscribe()
		timeout := time.After(2 * time.Second)
	wait:
		for {
			select {
			case fg := <-ch:
				if _, ok := fg.SessionByUser(user); ok {
					break wait
				}
			case <-timeout:
				c.logger.Warn("no session for user, idea will have no player name", "user_id", user)
				break wait
			case <-ctx.Done():
				break wait
			}
		}
		coord.Aggregate().Unsubscribe(ch)
	}

	idea, err := coord.InsertIdea(ctx, brainy.Idea{
		PlayerID: user,
		Origin:   brainy.Origin(origin),
		Title:    title,
	})
	if err != nil {
		return err
	}
	return c.print(idea)
}

// watch prints the game with its step counters on every change until
// interrupted.
func (c *cli) watch(ctx context.Context, opts docopt.Opts) error {
	gameID, _ := opts.String("--game")

	catalog := gamesync.NewCatalogWatcher(c.feed, c.logger)
	if err := catalog.Load(ctx); err != nil {
		return err
	}
	go catalog.Run(ctx)

	coord := gamesync.NewCoordinator(c.feed, catalog, gameID, c.logger)
	if err := coord.Register(ctx); err != nil {
		return err
	}
	defer coord.Deregister()

	ch := coord.Aggregate().Subscribe()
	defer coord.Aggregate().Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case fg := <-ch:
			if fg.Game.ID == "" {
				continue
			}
			err := c.print(struct {
				brainy.FullGame
				Counts map[brainy.Step]int `json:"counts"`
			}{fg, brainy.StepCounts(fg)})
			if err != nil {
				return err
			}
		}
	}
}
