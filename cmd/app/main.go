package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/anubis/internal"
	pkgconfig "github.com/starford/anubis/pkg/config"
)

// configExt is the suffix of config files discovered in the working directory.
const configExt = ".anubis"

// loadConfig reads the --config file, or the first *.anubis file in the
// working directory. Without either, the defaults are used.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	path := cmd.String("config")
	if path == "" {
		found, err := pkgconfig.Find(".", configExt)
		switch {
		case errors.Is(err, pkgconfig.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			path = found
		}
	}

	if path != "" {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if data := cmd.String("data"); data != "" {
		cfg.SQLite.Path = data
	}
	return cfg, nil
}

func action(command internal.Command) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithCommand(command),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}

		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "anubis",
		Usage:  "Extract documentation blocks from source files, link them into a graph and serve them as HTML",
		Action: action(internal.CommandAll),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: first *.anubis file in the working directory)",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the SQLite database, overrides sqlite.path",
				Sources: cli.EnvVars("APP_DATA_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   string(internal.CommandParse),
				Usage:  "Parse the source tree and store the blocks",
				Action: action(internal.CommandParse),
			},
			{
				Name:   string(internal.CommandRender),
				Usage:  "Render the stored blocks to HTML",
				Action: action(internal.CommandRender),
			},
			{
				Name:   string(internal.CommandRun),
				Usage:  "Serve the stored pages",
				Action: action(internal.CommandRun),
			},
			{
				Name:   string(internal.CommandAll),
				Usage:  "Parse, render and serve",
				Action: action(internal.CommandAll),
			},
			{
				Name:   string(internal.CommandExport),
				Usage:  "Write the stored pages to the export directory",
				Action: action(internal.CommandExport),
			},
			{
				Name:   string(internal.CommandMCP),
				Usage:  "Serve the stored blocks over MCP on stdio",
				Action: action(internal.CommandMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
