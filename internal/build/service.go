package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/config"
)

// BuildService executes builds.
type BuildService interface {
	// Run executes the full pipeline once.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains the inputs of one build.
type BuildRequest struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	// Options adjusts the configuration for this run only.
	Options BuildOptions
}

// BuildOptions override configuration for a single run.
type BuildOptions struct {
	// Mode replaces the configured mode when set.
	Mode config.Mode

	// OutDir replaces the configured output directory when set.
	OutDir string

	// NoCache disables both cache tiers.
	NoCache bool
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	Status     BuildStatus
	BuildID    string
	OutputPath string

	// Files are the build outputs; Artifacts are report files written next to them.
	Files     []string
	Artifacts []string

	CacheKey string
	CacheHit bool
	// CacheTier is "local" or "remote" on a hit.
	CacheTier string

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusCached    BuildStatus = "cached"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusCached ||
		s == BuildStatusFailed || s == BuildStatusCancelled
}

// IsSuccess returns true if the build produced its outputs.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess || s == BuildStatusCached
}
