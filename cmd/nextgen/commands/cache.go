package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/build"
	"git.home.luguber.info/inful/nextgen/internal/cache"
	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// CacheCmd groups the cache subcommands.
type CacheCmd struct {
	Key     CacheKeyCmd     `cmd:"" help:"Print the cache key for the current sources"`
	Ls      CacheLsCmd      `cmd:"" help:"List cached builds"`
	Prune   CachePruneCmd   `cmd:"" help:"Remove entries not used recently"`
	Restore CacheRestoreCmd `cmd:"" help:"Copy a cached build into a directory"`
}

func openCache(g *Global, root *CLI) (*config.Config, *cache.DiskCache, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	dc, err := build.OpenCache(cfg, nil, g.Logger)
	if err != nil {
		return nil, nil, errors.CacheError("failed to open cache").WithCause(err).Build()
	}
	return cfg, dc, nil
}

func entryPaths(cfg *config.Config) []string {
	paths := make([]string, len(cfg.Entry))
	for i, e := range cfg.Entry {
		paths[i] = cfg.Resolve(e)
	}
	return paths
}

// CacheKeyCmd prints the key the next build would use.
type CacheKeyCmd struct{}

func (CacheKeyCmd) Run(g *Global, root *CLI) error {
	cfg, dc, err := openCache(g, root)
	if err != nil {
		return err
	}
	defer func() { _ = dc.Close() }()
	key, err := dc.KeyFromFiles(g.Ctx, entryPaths(cfg))
	if err != nil {
		return err
	}
	res := dc.Lookup(g.Ctx, key)
	fmt.Printf("%s\t%s\t%s\n", key, res.Status, res.Tier)
	return nil
}

// CacheLsCmd lists local entries, most recently used first.
type CacheLsCmd struct{}

func (CacheLsCmd) Run(g *Global, root *CLI) error {
	_, dc, err := openCache(g, root)
	if err != nil {
		return err
	}
	defer func() { _ = dc.Close() }()
	entries, err := dc.List(g.Ctx)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LastUsed.After(entries[j].LastUsed) })

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tFILES\tBYTES\tCREATED\tLAST USED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", e.Key, e.Files, e.Bytes,
			e.Created.Format(time.DateTime), e.LastUsed.Format(time.DateTime))
	}
	return tw.Flush()
}

// CachePruneCmd removes stale entries.
type CachePruneCmd struct {
	OlderThan time.Duration `name:"older-than" help:"Age threshold; defaults to watch.pruneOlderThan"`
}

func (c CachePruneCmd) Run(g *Global, root *CLI) error {
	cfg, dc, err := openCache(g, root)
	if err != nil {
		return err
	}
	defer func() { _ = dc.Close() }()
	age := c.OlderThan
	if age <= 0 {
		age = cfg.Watch.PruneOlderThan
	}
	n, err := dc.Prune(g.Ctx, age)
	if err != nil {
		return errors.CacheError("prune failed").WithCause(err).Build()
	}
	fmt.Printf("Removed %d entr%s older than %s\n", n, plural(n, "y", "ies"), age)
	return nil
}

// CacheRestoreCmd copies a cached build's files into a directory.
type CacheRestoreCmd struct {
	Key string `arg:"" help:"Cache key"`
	To  string `name:"to" help:"Destination directory; defaults to the configured outDir"`
}

func (c CacheRestoreCmd) Run(g *Global, root *CLI) error {
	if err := cache.ValidateKey(c.Key); err != nil {
		return errors.ValidationError("invalid cache key").WithCause(err).Build()
	}
	cfg, dc, err := openCache(g, root)
	if err != nil {
		return err
	}
	defer func() { _ = dc.Close() }()
	dst := cfg.OutPath()
	if c.To != "" {
		dst = c.To
	}
	if !dc.RestoreFiles(g.Ctx, c.Key, dst) {
		return errors.CacheError("cache entry could not be restored").WithContext("key", c.Key).Build()
	}
	fmt.Printf("Restored %s into %s\n", c.Key, dst)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
