package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Mode    string `help:"Override the build mode (development|production|test)"`
	Out     string `short:"o" help:"Override the output directory"`
	NoCache bool   `name:"no-cache" help:"Skip both cache tiers"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	mode, err := parseMode(b.Mode)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	svc, cleanup := newService(g.Ctx, cfg, g, nil)
	defer cleanup()

	res, err := svc.Run(g.Ctx, build.BuildRequest{
		Config:  cfg,
		Options: build.BuildOptions{Mode: mode, OutDir: b.Out, NoCache: b.NoCache},
	})
	if err != nil {
		return err
	}
	fmt.Println(summary(res))
	return nil
}

func summary(res *build.BuildResult) string {
	cache := "miss"
	if res.CacheHit {
		cache = "hit (" + res.CacheTier + ")"
	}
	if res.CacheKey == "" {
		cache = "off"
	}
	return fmt.Sprintf("Build %s in %s: %d file(s) in %s, cache %s [%s]",
		res.Status, res.Duration.Round(time.Millisecond), len(res.Files), res.OutputPath, cache, res.BuildID)
}
