// Package report writes the per-build report and the git changelog into the
// output directory.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// Output file names.
const (
	ReportFile        = "build-report.json"
	ChangelogFile     = "changelog.md"
	ChangelogHTMLFile = "changelog.html"
	DefaultCommits    = 5
)

// Input is what a report is built from.
type Input struct {
	BuildID   string
	Mode      string
	Root      string
	OutDir    string
	StartedAt time.Time
	Duration  time.Duration
	Files     []string
	CacheHit  bool
	Changelog bool
	HTML      bool
	Commits   int
}

// Report is the JSON document written to build-report.json.
type Report struct {
	Timestamp string   `json:"timestamp"`
	BuildID   string   `json:"buildId"`
	Mode      string   `json:"mode"`
	Duration  int64    `json:"duration"` // milliseconds
	CacheHit  bool     `json:"cacheHit"`
	Assets    int      `json:"assets"`
	Files     []string `json:"files"`
}

// New builds the report document for in.
func New(in Input) Report {
	files := make([]string, 0, len(in.Files))
	for _, f := range in.Files {
		files = append(files, filepath.Base(f))
	}
	return Report{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		BuildID:   in.BuildID,
		Mode:      in.Mode,
		Duration:  in.Duration.Milliseconds(),
		CacheHit:  in.CacheHit,
		Assets:    len(files),
		Files:     files,
	}
}

// Write emits the report and, when enabled, the changelog. It returns the
// paths written. A missing git repository only skips the changelog.
func Write(ctx context.Context, in Input, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(in.OutDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	data, err := json.MarshalIndent(New(in), "", "  ")
	if err != nil {
		return nil, err
	}
	reportPath := filepath.Join(in.OutDir, ReportFile)
	if err := os.WriteFile(reportPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write build report: %w", err)
	}
	written = append(written, reportPath)

	if !in.Changelog {
		return written, nil
	}
	if err := ctx.Err(); err != nil {
		return written, err
	}
	n := in.Commits
	if n <= 0 {
		n = DefaultCommits
	}
	lines, err := RecentCommits(in.Root, n)
	if err != nil {
		logger.Debug("Changelog skipped", logfields.Path(in.Root), logfields.Error(err))
		return written, nil
	}
	if len(lines) == 0 {
		return written, nil
	}
	md := Changelog(lines, time.Now())
	mdPath := filepath.Join(in.OutDir, ChangelogFile)
	if err := os.WriteFile(mdPath, md, 0o600); err != nil {
		return written, fmt.Errorf("write changelog: %w", err)
	}
	written = append(written, mdPath)

	if in.HTML {
		var buf bytes.Buffer
		if err := goldmark.Convert(md, &buf); err != nil {
			return written, fmt.Errorf("render changelog: %w", err)
		}
		htmlPath := filepath.Join(in.OutDir, ChangelogHTMLFile)
		if err := os.WriteFile(htmlPath, buf.Bytes(), 0o600); err != nil {
			return written, fmt.Errorf("write changelog html: %w", err)
		}
		written = append(written, htmlPath)
	}
	return written, nil
}
