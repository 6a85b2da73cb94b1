package lookup

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalogue API operations.
var (
	ErrRateLimited = errors.New("gutendex: rate limited by server")
	ErrServer      = errors.New("gutendex: server error")
	ErrBadStatus   = errors.New("gutendex: unexpected status")
)

// Error wraps an underlying error with the title being resolved.
type Error struct {
	Op      string // "search"
	Title   string
	Attempt int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gutendex %s [%q attempt %d]: %v", e.Op, e.Title, e.Attempt, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
