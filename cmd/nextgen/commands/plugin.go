package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/permissions"
	"git.home.luguber.info/inful/nextgen/internal/plugin"
	"git.home.luguber.info/inful/nextgen/internal/plugin/transforms"
)

// PluginCmd groups plugin subcommands.
type PluginCmd struct {
	Check PluginCheckCmd `cmd:"" help:"Load a sandboxed plugin and report its hooks"`
	List  PluginListCmd  `cmd:"" help:"List builtin plugins"`
}

// PluginCheckCmd evaluates a plugin file under the given permissions.
type PluginCheckCmd struct {
	File         string        `arg:"" type:"existingfile" help:"Plugin source file"`
	AllowRead    []string      `name:"allow-read" help:"Grant read access to a path"`
	AllowWrite   []string      `name:"allow-write" help:"Grant write access to a path"`
	AllowNetwork []string      `name:"allow-net" help:"Grant network access to a host"`
	AllowEnv     []string      `name:"allow-env" help:"Expose an environment variable"`
	Timeout      time.Duration `default:"5s" help:"Evaluation timeout"`
}

func (c *PluginCheckCmd) Run(g *Global, root *CLI) error {
	// #nosec G304 - the user names the file to check
	src, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(root.Dir)
	if err != nil {
		return err
	}
	set := permissions.Set{Read: c.AllowRead, Write: c.AllowWrite, Network: c.AllowNetwork, Env: c.AllowEnv}
	p, err := plugin.LoadSandboxedPlugin(g.Ctx, string(src), set, plugin.LoadOptions{
		Filename: c.File,
		Root:     dir,
		Timeout:  c.Timeout,
		Logger:   g.Logger,
	})
	if err != nil {
		return err
	}
	hooks := make([]string, 0, 3)
	for _, h := range p.Hooks() {
		hooks = append(hooks, string(h))
	}
	fmt.Printf("%s\thooks: %s\n", p.Metadata(), strings.Join(hooks, ", "))
	return nil
}

// PluginListCmd prints the builtin plugin names.
type PluginListCmd struct{}

func (PluginListCmd) Run() error {
	for _, name := range transforms.Builtins().Names() {
		fmt.Println(name)
	}
	return nil
}
