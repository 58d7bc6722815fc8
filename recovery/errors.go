package recovery

import "errors"

// ErrAlreadyRecovering is returned when a recovery pass is already in
// flight. The concurrent caller is rejected, not queued.
var ErrAlreadyRecovering = errors.New("recovery: already recovering")
