package error

import "errors"

var ErrTypeAssertMismatch = errors.New("failed to assert type of context value")
