package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Passthrough copies each entry to <OutDir>/<name>.js after running load hooks.
// It does not resolve imports.
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) Bundle(ctx context.Context, req Request) (*Result, error) {
	if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	names := make([]string, 0, len(req.EntryPoints))
	for name := range req.EntryPoints {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &Result{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := req.EntryPoints[name]
		// #nosec G304 - entry points come from build config
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", name, err)
		}
		code := string(data)
		for _, h := range req.Hooks {
			lh, ok := h.(LoadHook)
			if !ok {
				continue
			}
			out, err := lh.OnLoad(ctx, src, code)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", lh.Name(), src, err)
			}
			if out != "" {
				code = out
			}
		}
		dst := filepath.Join(req.OutDir, name+".js")
		if err := os.WriteFile(dst, []byte(code), 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", dst, err)
		}
		res.Files = append(res.Files, dst)
	}
	return res, nil
}
