package ipc

import (
	"errors"

	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

var (
	ErrSizeMismatch  = errors.New("size mismatch")
	ErrObjectMissing = errors.New("kernel object missing")
	ErrInvalidSize   = errors.New("invalid size")
	ErrInvalidName   = paths.ErrInvalidName
)
