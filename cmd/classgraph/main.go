// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/classgraph"
	"github.com/poiesic/classgraph/config"
	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
	"github.com/poiesic/classgraph/usage"
)

// configKey is where the loaded configuration lives in the app metadata.
const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "classgraph",
		Usage:    "Storage and quota core for conversational classrooms",
		Metadata: map[string]any{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Count stored entities per tag",
				Action: statsCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:   "get",
				Usage:  "Fetch one entity by id and print it as JSON",
				Action: getCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Entity id to fetch",
						Required: true,
					},
				},
			},
			{
				Name:   "fsck",
				Usage:  "Audit the identity index against the entity store",
				Action: fsckCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:   "authorize",
				Usage:  "Run a quota check for an owner without writing anything",
				Action: authorizeCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Authentication subject id of the participant",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     "seconds",
						Usage:    "Requested consumption in audio seconds",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "timezone",
						Usage: "IANA location for window boundaries (overrides configuration)",
					},
				},
			},
		},
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to the database directory (overrides configuration)",
	}
}

// setup loads the configuration and installs the logger. An explicit
// --log-level flag wins over the file and the environment.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) config.Config {
	if cfg, ok := c.App.Metadata[configKey].(config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openDatabase(c *cli.Context) (*classgraph.Database, error) {
	cfg := loadedConfig(c)

	dir := cfg.DataDir
	if c.IsSet("db") {
		dir = c.String("db")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	opts := []classgraph.DatabaseOption{classgraph.WithLocation(loc)}
	if cfg.PoolSize > 0 {
		opts = append(opts, classgraph.WithPoolSize(cfg.PoolSize))
	}
	if cfg.InMemory {
		opts = append(opts, classgraph.WithInMemoryBackend())
	}

	db, err := classgraph.NewDatabase(dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	total := 0
	for _, tag := range core.Tags() {
		entities, err := db.Repository().QueryTag(ctx, tag, storage.NewQuery().Build())
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", tag, err)
		}
		fmt.Printf("%-18s %d\n", tag, len(entities))
		total += len(entities)
	}
	fmt.Printf("%-18s %d\n", "total", total)
	return nil
}

func getCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	entity, err := db.Repository().Get(ctx, core.ID(c.String("id")))
	if err != nil {
		return fmt.Errorf("failed to fetch entity: %w", err)
	}
	if entity == nil {
		return fmt.Errorf("no entity with id %q", c.String("id"))
	}

	out, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fsckCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	orphans, err := db.Audit(ctx)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	if len(orphans) == 0 {
		fmt.Println("identity index is consistent")
		return nil
	}

	for _, o := range orphans {
		fmt.Printf("%s\t%s\t%s\t%s\n",
			o.Entry.ID, o.Entry.Tag, o.Entry.BoundAt.Format(time.RFC3339), o.Reason)
	}
	return fmt.Errorf("%d orphaned index entries", len(orphans))
}

func authorizeCommand(c *cli.Context) error {
	ctx := context.Background()

	var authOpts []usage.AuthorizerOption
	if tz := c.String("timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		authOpts = append(authOpts, usage.WithLocation(loc))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	decision, err := db.NewAuthorizer(authOpts...).Authorize(ctx, usage.Request{
		OwnerID:   c.String("owner"),
		Requested: core.Seconds(c.Float64("seconds")),
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Printf("authorized: %v (%s)\n", decision.Authorized, decision.Reason)
	for _, p := range decision.Policies {
		verdict := "ok"
		if p.Exceeded {
			verdict = "exceeded"
		}
		fmt.Printf("policy %s: %s %s window, %.1f used + %.1f requested of %.1f (%s)\n",
			p.Policy, p.Unit, p.Window, p.Existing, p.Requested, p.Max, verdict)
	}
	if !decision.Authorized {
		return fmt.Errorf("request rejected: %s", decision.Reason)
	}
	return nil
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
