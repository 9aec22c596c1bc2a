//go:build !linux && !darwin

package osbackend

import (
	custom_err "github.com/Viet-ph/simepoll/internal/error"
)

// New always fails: there is no kernel polling instance to forward to.
func New(size int) (Backend, error) {
	return nil, custom_err.ErrorUnsupported
}
