package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T, dir string, messages ...string) {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)
	for i, msg := range messages {
		name := filepath.Join(dir, "f.txt")
		require.NoError(t, os.WriteFile(name, []byte(strings.Repeat("x", i+1)), 0o600))
		_, err = w.Add("f.txt")
		require.NoError(t, err)
		_, err = w.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)
	}
}

func TestRecentCommits(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir, "first", "second\n\nbody text", "third")

	lines, err := RecentCommits(dir, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Regexp(t, `^- third \([0-9a-f]{7}\)$`, lines[0])
	assert.Regexp(t, `^- second \([0-9a-f]{7}\)$`, lines[1])
}

func TestRecentCommitsNotARepo(t *testing.T) {
	_, err := RecentCommits(t.TempDir(), 5)
	require.Error(t, err)
}

func TestWriteReportAndChangelog(t *testing.T) {
	root := t.TempDir()
	initRepo(t, root, "add entry")
	out := filepath.Join(root, "build_output")

	written, err := Write(context.Background(), Input{
		BuildID:   "b-1",
		Mode:      "production",
		Root:      root,
		OutDir:    out,
		Duration:  1500 * time.Millisecond,
		Files:     []string{filepath.Join(out, "entry0.js")},
		CacheHit:  true,
		Changelog: true,
		HTML:      true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, ReportFile),
		filepath.Join(out, ChangelogFile),
		filepath.Join(out, ChangelogHTMLFile),
	}, written)

	data, err := os.ReadFile(filepath.Join(out, ReportFile))
	require.NoError(t, err)
	var r Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "b-1", r.BuildID)
	assert.Equal(t, int64(1500), r.Duration)
	assert.True(t, r.CacheHit)
	assert.Equal(t, []string{"entry0.js"}, r.Files)
	assert.Equal(t, 1, r.Assets)

	md, err := os.ReadFile(filepath.Join(out, ChangelogFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Changelog\n\nGenerated at "))
	assert.Contains(t, string(md), "- add entry (")

	html, err := os.ReadFile(filepath.Join(out, ChangelogHTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Changelog</h1>")
	assert.Contains(t, string(html), "<li>add entry (")
}

func TestWriteWithoutGitSkipsChangelog(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	written, err := Write(context.Background(), Input{Root: root, OutDir: out, Changelog: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, ReportFile)}, written)
	assert.NoFileExists(t, filepath.Join(out, ChangelogFile))
}
