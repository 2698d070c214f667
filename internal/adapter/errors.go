package adapter

import (
	"errors"
	"fmt"
)

// ErrMarketNotFound means the requested protocol token has no resolved
// metadata entry. Proceeding would misattribute balances to the wrong
// underlying asset, so callers get the error instead of a default.
var ErrMarketNotFound = errors.New("market not found")

// ErrNotImplemented marks adapter capabilities that are intentionally
// unfinished. Surfaced immediately, never swallowed.
var ErrNotImplemented = errors.New("not implemented")

// UpstreamError wraps a failure from the chain or event reader. The core
// applies no retry policy; the wrapped error propagates unchanged.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream read %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError, or returns nil if err is nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
