package rxn

import (
	"fmt"

	"github.com/daniacca/rxdyn/internal/molec"
)

// SetupError reports an illegal catalog edit. The catalog is left unchanged.
type SetupError struct {
	Op     string
	Reason string
}

func (e *SetupError) Error() string {
	return e.Op + ": " + e.Reason
}

func setupErrorf(op, format string, args ...any) error {
	return &SetupError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ParamError reports the first reaction whose parameters could not be
// resolved. The catalog condition is not advanced.
type ParamError struct {
	Order  int
	Index  int
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("order %d reaction %s: %s", e.Order, e.Name, e.Reason)
}

// ErrAllocatorFull is returned when products cannot be placed because the
// molecule store is at capacity and cannot grow. The pass stops before the
// reaction that did not fit; reactions already executed are committed.
var ErrAllocatorFull = fmt.Errorf("not enough molecules allocated for reaction products: %w", molec.ErrStoreFull)

// invariant aborts on a violated internal invariant.
func invariant(format string, args ...any) {
	panic("rxn: internal error: " + fmt.Sprintf(format, args...))
}
