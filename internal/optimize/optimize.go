// Package optimize post-processes build outputs for production.
package optimize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// StripComments removes HTML comments from src. Everything else is kept
// byte for byte, including conditional comments' surrounding markup.
func StripComments(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return out.Bytes(), nil
		case html.CommentToken:
			continue
		default:
			out.Write(z.Raw())
		}
	}
}

// Dir strips comments from every .html/.htm file under dir and returns how
// many files changed. A missing dir is not an error.
func Dir(ctx context.Context, dir string) (int, error) {
	changed := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isHTML(path) {
			return nil
		}
		ok, err := file(path)
		if err != nil {
			return fmt.Errorf("optimize %s: %w", path, err)
		}
		if ok {
			changed++
		}
		return nil
	})
	return changed, err
}

func file(path string) (bool, error) {
	// #nosec G304 - path is inside the build output directory
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, err := StripComments(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	if bytes.Equal(out, data) {
		return false, nil
	}
	return true, os.WriteFile(path, out, 0o600)
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
