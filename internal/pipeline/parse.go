package pipeline

import (
	"log/slog"
	"strconv"
	"strings"

	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
)

// parsePassageNumber reads the trailing number of a passage reference.
// Both "passage_3" and "3" yield 3.
func parsePassageNumber(ref string) (int, error) {
	num := strings.TrimSpace(ref)
	if i := strings.LastIndexByte(num, '_'); i >= 0 {
		num = num[i+1:]
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0, domainerrors.Validationf("unparseable passage reference %q", ref)
	}
	return n, nil
}

// parseCount converts a numeric profile column. Empty or malformed values
// become 0 with a warning; they never drop the profile.
func parseCount(log *slog.Logger, name, column, raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	// CSV exports sometimes carry "34.0".
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	log.Warn("invalid numeric profile value, using 0", "name", name, "column", column, "value", raw)
	return 0
}
