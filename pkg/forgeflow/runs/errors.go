package runs

import "errors"

// ErrInvalidTransition means a run was asked to move to a state the
// lifecycle does not allow from its current state.
var ErrInvalidTransition = errors.New("invalid run status transition")
