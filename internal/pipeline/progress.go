package pipeline

import (
	"fmt"
	"maps"
	"sync"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
)

// Phase is one stage of a run.
type Phase int

// Run phases, in order.
const (
	PhaseRead Phase = iota + 1
	PhaseLookup
	PhasePassages
	PhaseUsers
	PhaseInterpretations
	PhaseAnomalies
	PhaseWrite
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseRead:
		return "read"
	case PhaseLookup:
		return "lookup"
	case PhasePassages:
		return "passages"
	case PhaseUsers:
		return "users"
	case PhaseInterpretations:
		return "interpretations"
	case PhaseAnomalies:
		return "anomalies"
	case PhaseWrite:
		return "write"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of a running pipeline.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
	Skipped int
}

// tracker records progress and skipped records. Safe for concurrent use by
// pass-1 workers.
type tracker struct {
	callback func(Progress)
	progress Progress
	skips    domain.SkipTally
	mu       sync.Mutex
}

func newTracker(callback func(Progress)) *tracker {
	return &tracker{callback: callback, skips: domain.SkipTally{ByCode: map[string]int{}, Reasons: []string{}}}
}

func (t *tracker) setPhase(phase Phase, total int) {
	t.mu.Lock()
	t.progress.Phase = phase
	t.progress.Current = 0
	t.progress.Total = total
	p := t.progress
	t.mu.Unlock()
	t.notify(p)
}

func (t *tracker) increment() {
	t.mu.Lock()
	t.progress.Current++
	p := t.progress
	t.mu.Unlock()
	t.notify(p)
}

// skip counts a dropped record against the current phase. Errors whose code
// is fatal are not skippable and are returned wrapped with the record key.
func (t *tracker) skip(kind, key string, err error) error {
	code := domainerrors.CodeOf(err)
	if code.Fatal() {
		return fmt.Errorf("%s %s: %w", kind, key, err)
	}

	t.mu.Lock()
	switch t.progress.Phase {
	case PhasePassages:
		t.skips.Passages++
	case PhaseUsers:
		t.skips.Users++
	default:
		t.skips.Interpretations++
	}
	t.skips.ByCode[string(code)]++
	t.skips.Reasons = append(t.skips.Reasons, fmt.Sprintf("%s %s: %v", kind, key, err))
	t.progress.Skipped++
	t.mu.Unlock()
	return nil
}

func (t *tracker) skipped() domain.SkipTally {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.skips
	s.ByCode = maps.Clone(t.skips.ByCode)
	s.Reasons = append([]string{}, t.skips.Reasons...)
	return s
}

func (t *tracker) notify(p Progress) {
	if t.callback != nil {
		t.callback(p)
	}
}
