package pipeline

import "git.home.luguber.info/inful/nextgen/internal/metrics"

type fakeRecorder struct {
	metrics.NoopRecorder
	steps    []string
	outcomes []string
}

func (f *fakeRecorder) IncStepResult(step string, r metrics.ResultLabel) {
	f.steps = append(f.steps, step+":"+string(r))
}

func (f *fakeRecorder) IncBuildOutcome(o metrics.BuildOutcomeLabel) {
	f.outcomes = append(f.outcomes, string(o))
}
