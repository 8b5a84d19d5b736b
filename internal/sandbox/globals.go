package sandbox

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/permissions"
)

const maxFetchBody = 16 << 20

func (s *Sandbox) consoleObject() *goja.Object {
	console := s.vm.NewObject()
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"debug": slog.LevelDebug,
	}
	for name, level := range levels {
		mustSet(console, name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			s.logger.Log(s.currentContext(), level, strings.Join(parts, " "),
				logfields.Plugin(s.filename), slog.String("console", name))
			return goja.Undefined()
		})
	}
	return console
}

func (s *Sandbox) processObject() *goja.Object {
	process := s.vm.NewObject()

	env := s.vm.NewObject()
	for _, kv := range s.opts.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if s.perms.CanAccessEnv(name) {
			mustSet(env, name, value)
		}
	}
	mustSet(process, "env", env)

	mustSet(process, "getEnv", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !s.perms.CanAccessEnv(name) {
			s.throw(&permissions.DeniedError{Kind: permissions.KindEnv, Target: name})
		}
		for _, kv := range s.opts.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k == name {
				return s.vm.ToValue(v)
			}
		}
		return goja.Undefined()
	})

	mustSet(process, "cwd", func(goja.FunctionCall) goja.Value {
		wd, err := os.Getwd()
		if err != nil {
			s.throw(err)
		}
		return s.vm.ToValue(wd)
	})
	return process
}

func (s *Sandbox) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	switch name {
	case "fs":
		return s.fsModule()
	case "path":
		return s.pathModule()
	}
	s.throw(&ModuleDeniedError{Name: name})
	return nil
}

func (s *Sandbox) fsModule() *goja.Object {
	fs := s.vm.NewObject()

	mustSet(fs, "readFileSync", func(call goja.FunctionCall) goja.Value {
		target := call.Argument(0).String()
		if !s.perms.CanRead(target) {
			s.throw(&permissions.DeniedError{Kind: permissions.KindRead, Target: target})
		}
		data, err := os.ReadFile(s.perms.Resolve(target)) // #nosec G304 -- path checked by permission manager
		if err != nil {
			s.throw(err)
		}
		if enc := call.Argument(1); !goja.IsUndefined(enc) && !goja.IsNull(enc) {
			return s.vm.ToValue(string(data))
		}
		return s.vm.ToValue(s.vm.NewArrayBuffer(data))
	})

	mustSet(fs, "writeFileSync", func(call goja.FunctionCall) goja.Value {
		target := call.Argument(0).String()
		if !s.perms.CanWrite(target) {
			s.throw(&permissions.DeniedError{Kind: permissions.KindWrite, Target: target})
		}
		var data []byte
		switch v := call.Argument(1).Export().(type) {
		case goja.ArrayBuffer:
			data = v.Bytes()
		case []byte:
			data = v
		case nil:
		default:
			data = []byte(call.Argument(1).String())
		}
		resolved := s.perms.Resolve(target)
		if err := os.WriteFile(resolved, data, 0o600); err != nil {
			s.throw(err)
		}
		return goja.Undefined()
	})
	return fs
}

func (s *Sandbox) pathModule() *goja.Object {
	p := s.vm.NewObject()
	strs := func(call goja.FunctionCall) []string {
		out := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			out[i] = a.String()
		}
		return out
	}

	mustSet(p, "sep", string(filepath.Separator))
	mustSet(p, "join", func(call goja.FunctionCall) goja.Value {
		joined := filepath.Join(strs(call)...)
		if joined == "" {
			joined = "."
		}
		return s.vm.ToValue(joined)
	})
	mustSet(p, "resolve", func(call goja.FunctionCall) goja.Value {
		resolved := ""
		for _, seg := range strs(call) {
			if filepath.IsAbs(seg) {
				resolved = seg
			} else {
				resolved = filepath.Join(resolved, seg)
			}
		}
		abs, err := filepath.Abs(resolved)
		if err != nil {
			s.throw(err)
		}
		return s.vm.ToValue(abs)
	})
	mustSet(p, "normalize", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(filepath.Clean(call.Argument(0).String()))
	})
	mustSet(p, "dirname", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(filepath.Dir(call.Argument(0).String()))
	})
	mustSet(p, "basename", func(call goja.FunctionCall) goja.Value {
		base := filepath.Base(call.Argument(0).String())
		if ext := call.Argument(1); !goja.IsUndefined(ext) {
			base = strings.TrimSuffix(base, ext.String())
		}
		return s.vm.ToValue(base)
	})
	mustSet(p, "extname", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(filepath.Ext(call.Argument(0).String()))
	})
	mustSet(p, "isAbsolute", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(filepath.IsAbs(call.Argument(0).String()))
	})
	mustSet(p, "relative", func(call goja.FunctionCall) goja.Value {
		from, err := filepath.Abs(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		to, err := filepath.Abs(call.Argument(1).String())
		if err != nil {
			s.throw(err)
		}
		rel, err := filepath.Rel(from, to)
		if err != nil {
			s.throw(err)
		}
		if rel == "." {
			rel = ""
		}
		return s.vm.ToValue(rel)
	})
	return p
}

// fetch performs a blocking GET and returns {status, text}.
func (s *Sandbox) fetch(call goja.FunctionCall) goja.Value {
	raw := call.Argument(0).String()
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		s.throw(fmt.Errorf("invalid URL: %s", raw))
	}
	host := u.Hostname()
	if !s.perms.CanAccessNetwork(host) {
		s.throw(&permissions.DeniedError{Kind: permissions.KindNetwork, Target: host})
	}

	req, err := http.NewRequestWithContext(s.currentContext(), http.MethodGet, u.String(), nil)
	if err != nil {
		s.throw(err)
	}
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		s.throw(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		s.throw(err)
	}
	s.logger.Debug("Sandbox fetch", logfields.Plugin(s.filename), logfields.Host(host),
		slog.Int("status", resp.StatusCode))

	result := s.vm.NewObject()
	mustSet(result, "status", resp.StatusCode)
	mustSet(result, "ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	mustSet(result, "text", string(body))
	return result
}
