package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notionhugo/internal"
	pkgconfig "github.com/starford/notionhugo/pkg/config"
)

var version = "dev"

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	read, err := pkgconfig.LoadIfExists(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !read {
		slog.Warn("config file not found, using defaults", slog.String("path", path))
	}
	// NOTION_TOKEN fills the token when the file leaves it empty.
	if cfg.Notion.Token == "" {
		cfg.Notion.Token = os.Getenv("NOTION_TOKEN")
	}
	if v := cmd.String("out"); v != "" {
		cfg.Output.Root = v
	}
	if v := cmd.String("database"); v != "" {
		cfg.Notion.DatabaseID = v
	}
	if cmd.IsSet("status") {
		cfg.Notion.Status = cmd.String("status")
	}
	if pages := cmd.StringSlice("page"); len(pages) > 0 {
		cfg.Notion.PageIDs = pages
	}
	if cmd.Bool("strict") {
		cfg.App.Strict = true
	}
	return cfg, cfg.Validate()
}

type entrypoint func(ctx context.Context, opts ...internal.Option) error

func action(run entrypoint, name string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("%s error: %w", name, err)
		}
		return nil
	}
}

func main() {
	exportFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "Source database id",
			Sources: cli.EnvVars("NOTION_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "Only export documents whose Status equals this value",
		},
		&cli.StringSliceFlag{
			Name:    "page",
			Aliases: []string{"p"},
			Usage:   "Export these page ids instead of querying the database (repeatable, ';'-separated)",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail when no documents match",
		},
	}

	cmd := &cli.Command{
		Name:    "notionhugo",
		Usage:   "Export a Notion database into a Hugo content tree",
		Version: version,
		Action:  action(internal.Run, "export"),
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Content root to write into",
			},
		}, exportFlags...),
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Export the selected documents (default)",
				Action: action(internal.Run, "export"),
			},
			{
				Name:   "status",
				Usage:  "List exported documents recorded in the ledger",
				Action: action(internal.Status, "status"),
			},
			{
				Name:   "serve",
				Usage:  "Serve the preview API over the exported tree",
				Action: action(internal.Serve, "serve"),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: action(internal.ServeMCP, "mcp"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
