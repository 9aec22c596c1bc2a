package custom_err

import (
	"errors"
	"fmt"
	"syscall"
)

// Registration errors wrap the errno the control interface would return, so
// callers can match on either the sentinel or the code.
var (
	ErrorAlreadyRegistered = fmt.Errorf("descriptor already registered: %w", syscall.EEXIST)
	ErrorNotRegistered     = fmt.Errorf("descriptor not registered: %w", syscall.ENOENT)
	ErrorInvalidOperation  = fmt.Errorf("invalid control operation: %w", syscall.EINVAL)
	ErrorMissingEvent      = fmt.Errorf("missing event for control operation: %w", syscall.EFAULT)
	ErrorBadDescriptor     = fmt.Errorf("bad descriptor handle: %w", syscall.EBADF)

	ErrorInconsistentWatch = errors.New("status change for a descriptor that is not being watched")
	ErrorUnsupported       = errors.New("no os polling backend on this platform")
)

// Errno returns the control interface code for err, or 0 when err carries none.
func Errno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
