package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Build summary statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCached    = "cached"
	StatusFailed    = "failed"
)

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID     string     `json:"buildId"`
	Mode        string     `json:"mode,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	// DurationMS is the duration the pipeline reported.
	DurationMS float64  `json:"durationMs,omitempty"`
	Steps      int      `json:"steps"`
	CacheKey   string   `json:"cacheKey,omitempty"`
	Files      []string `json:"files,omitempty"`
	ErrorStep  string   `json:"errorStep,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// BuildHistoryProjection folds stored events into per-build summaries.
type BuildHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	builds  map[string]*BuildSummary
	maxSize int
}

// NewBuildHistoryProjection creates a projection over store keeping at most
// maxHistorySize finished builds.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild replays every stored event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.builds = make(map[string]*BuildSummary)
	for _, e := range events {
		p.applyLocked(e)
	}
	p.trimLocked()
	return nil
}

// Apply folds a single event.
func (p *BuildHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
	p.trimLocked()
}

func (p *BuildHistoryProjection) applyLocked(e Event) {
	id := e.BuildID()
	if id == "" {
		return
	}
	s, ok := p.builds[id]
	if !ok {
		s = &BuildSummary{BuildID: id, Status: StatusRunning, StartedAt: e.Timestamp()}
		p.builds[id] = s
	}

	switch e.Type() {
	case TypeBuildStarted:
		var body BuildStarted
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.Mode = body.Mode
		}
		s.StartedAt = e.Timestamp()
	case TypeStepCompleted:
		s.Steps++
	case TypeStepFailed:
		var body StepFinished
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.ErrorStep = body.Step
		}
	case TypeBuildCompleted, TypeBuildFailed:
		at := e.Timestamp()
		s.CompletedAt = &at
		var body BuildFinished
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.DurationMS = body.DurationMS
			s.CacheKey = body.CacheKey
			s.Files = body.Files
			s.Error = body.Error
			if body.Step != "" {
				s.ErrorStep = body.Step
			}
		}
		switch {
		case e.Type() == TypeBuildFailed:
			s.Status = StatusFailed
		case body.CacheHit:
			s.Status = StatusCached
		default:
			s.Status = StatusCompleted
		}
	}
}

// trimLocked drops the oldest finished builds beyond maxSize.
func (p *BuildHistoryProjection) trimLocked() {
	finished := p.finishedLocked()
	for _, s := range finished[min(len(finished), p.maxSize):] {
		delete(p.builds, s.BuildID)
	}
}

func (p *BuildHistoryProjection) finishedLocked() []*BuildSummary {
	out := make([]*BuildSummary, 0, len(p.builds))
	for _, s := range p.builds {
		if s.Status != StatusRunning {
			out = append(out, s)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(s []*BuildSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].StartedAt.Equal(s[j].StartedAt) {
			return s[i].BuildID > s[j].BuildID
		}
		return s[i].StartedAt.After(s[j].StartedAt)
	})
}

// GetHistory returns every known build, newest first.
func (p *BuildHistoryProjection) GetHistory() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	all := make([]*BuildSummary, 0, len(p.builds))
	for _, s := range p.builds {
		all = append(all, s)
	}
	sortNewestFirst(all)
	out := make([]BuildSummary, len(all))
	for i, s := range all {
		out[i] = *s
	}
	return out
}

// GetBuild returns a copy of one build's summary.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// GetLastCompletedBuild returns the newest finished build.
func (p *BuildHistoryProjection) GetLastCompletedBuild() (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	finished := p.finishedLocked()
	if len(finished) == 0 {
		return BuildSummary{}, false
	}
	return *finished[0], true
}
