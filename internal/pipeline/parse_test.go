package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

func TestParsePassageNumber(t *testing.T) {
	tests := []struct {
		ref     string
		want    int
		wantErr bool
	}{
		{ref: "passage_1", want: 1},
		{ref: "passage_12", want: 12},
		{ref: " 3 ", want: 3},
		{ref: "book_passage_4", want: 4},
		{ref: "passage_", wantErr: true},
		{ref: "passage_x", wantErr: true},
		{ref: "passage_-1", wantErr: true},
		{ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := parsePassageNumber(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCount(t *testing.T) {
	log := logger.Discard()
	assert.Equal(t, 42, parseCount(log, "Ada", "Age", "42"))
	assert.Equal(t, 34, parseCount(log, "Ada", "Age", "34.0"))
	assert.Zero(t, parseCount(log, "Ada", "Age", ""))
	assert.Zero(t, parseCount(log, "Ada", "Age", "34.5"))
	assert.Zero(t, parseCount(log, "Ada", "Age", "unknown"))
}

func TestValidityRate(t *testing.T) {
	assert.Zero(t, validityRate(0, 0))
	assert.Equal(t, 66.67, validityRate(2, 3))
	assert.Equal(t, 100.0, validityRate(450, 450))
}

func TestForEach_KeepsOrderAndPerItemErrors(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	var running, peak atomic.Int32

	out, errs, err := forEach(context.Background(), 3, items, func(n int) (int, error) {
		cur := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		if n%4 == 0 {
			return 0, errors.New("multiple of four")
		}
		return n * n, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4, 9, 0, 25, 36, 49, 0}, out)
	for i, e := range errs {
		assert.Equal(t, items[i]%4 == 0, e != nil, "item %d", items[i])
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := forEach(ctx, 2, []int{1, 2}, func(n int) (int, error) { return n, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTracker_SkipsByPhase(t *testing.T) {
	bad := domainerrors.Validation("bad")
	tr := newTracker(nil)
	tr.setPhase(PhasePassages, 2)
	require.NoError(t, tr.skip("passage", "Frankenstein/1", bad))
	tr.setPhase(PhaseUsers, 1)
	require.NoError(t, tr.skip("reader profile", "Ada", bad))
	tr.setPhase(PhaseInterpretations, 1)
	require.NoError(t, tr.skip("interpretation", "Ada/Frankenstein/passage_1", bad))
	require.NoError(t, tr.skip("interpretation", "Ben/Frankenstein/passage_1", domainerrors.Unavailablef("no profile store")))

	s := tr.skipped()
	assert.Equal(t, 1, s.Passages)
	assert.Equal(t, 1, s.Users)
	assert.Equal(t, 2, s.Interpretations)
	assert.Equal(t, map[string]int{"VALIDATION": 3, "UNAVAILABLE": 1}, s.ByCode)
	assert.Equal(t, "passage Frankenstein/1: bad", s.Reasons[0])

	s.Reasons[0] = "mutated"
	s.ByCode["VALIDATION"] = 99
	assert.Equal(t, "passage Frankenstein/1: bad", tr.skipped().Reasons[0])
	assert.Equal(t, 3, tr.skipped().ByCode["VALIDATION"])
}

func TestTracker_FatalCodesAreNotSkipped(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "uncoded", err: errors.New("boom")},
		{name: "internal", err: domainerrors.Internal("id scheme broken")},
		{name: "output", err: domainerrors.Outputf("disk full")},
		{name: "not found", err: domainerrors.NotFound("missing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker(nil)
			tr.setPhase(PhaseInterpretations, 1)

			err := tr.skip("interpretation", "Ada/Frankenstein/passage_1", tt.err)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "interpretation Ada/Frankenstein/passage_1")

			s := tr.skipped()
			assert.Zero(t, s.Total())
			assert.Empty(t, s.ByCode)
			assert.Empty(t, s.Reasons)
		})
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "interpretations", PhaseInterpretations.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
