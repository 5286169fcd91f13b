package placement

import "errors"

var (
	// ErrStorageKeyCollision means the derived key belongs to another document.
	ErrStorageKeyCollision = errors.New("storage key collision")
	// ErrStorageUnavailable covers object store and key registry failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidKey means no key can be derived from the inputs.
	ErrInvalidKey = errors.New("invalid storage key input")
)
