package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listenupapp/moments-pipeline/internal/domain"
)

func TestPrintSummary(t *testing.T) {
	r := &domain.RunReport{
		RunID:    "run_1",
		Pipeline: "moments",
		Version:  "1.0.0",
		Skipped: domain.SkipTally{
			Passages:        1,
			Interpretations: 3,
			ByCode:          map[string]int{"VALIDATION": 3, "UNAVAILABLE": 1},
		},
		Outputs: map[string]bool{"sqlite": true, "jsonl": false},
	}

	var buf bytes.Buffer
	printSummary(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Run run_1 (moments 1.0.0)")
	assert.Contains(t, out, "skipped:         4\n")
	assert.Contains(t, out, "    unavailable:   1\n    validation:    3\n")
	assert.Contains(t, out, "  output jsonl:   failed\n  output sqlite:  ok\n")
}
