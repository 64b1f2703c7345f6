package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/grayside/grayside/internal"
	"github.com/grayside/grayside/internal/slug"
	"github.com/grayside/grayside/internal/tagcolor"
	pkgconfig "github.com/grayside/grayside/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var errRejected = errors.New("some paths have no slug")

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Build(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("build error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func runSlug(_ context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	failed := false
	for _, p := range cmd.Args().Slice() {
		s, err := slug.Derive(p)
		if err != nil {
			failed = true
			fmt.Fprintf(cmd.Root().ErrWriter, "%s\t%v\n", p, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", p, s)
	}
	if failed {
		return errRejected
	}
	return nil
}

// runColor uses the configured palette when a config file is present.
func runColor(_ context.Context, cmd *cli.Command) error {
	palette := tagcolor.Default()
	cfg, err := loadConfig(cmd)
	switch {
	case err == nil:
		palette = cfg.Palette.Colors()
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	for _, tag := range cmd.Args().Slice() {
		fmt.Fprintf(cmd.Root().Writer, "%s\t%s\t%s\n", tag, palette.ColorFor(tag), slug.TagSlug(tag))
	}
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "grayside",
		Usage:   "Static blog generator with directory-derived slugs, tag pages and a live preview server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Index the content tree and write the static site",
				Action: runBuild,
			},
			{
				Name:   "serve",
				Usage:  "Build, watch the content tree and serve the site with a JSON API",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve content tools over MCP on stdio",
				Action: runMCP,
			},
			{
				Name:      "slug",
				Usage:     "Print the slug derived for each content file path",
				ArgsUsage: "<path>...",
				Action:    runSlug,
			},
			{
				Name:      "color",
				Usage:     "Print the colour and page slug of each tag",
				ArgsUsage: "<tag>...",
				Action:    runColor,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
