package entity

import "errors"

var (
	// ErrResourceSetup means the input could not be opened or probed at all.
	ErrResourceSetup = errors.New("resource setup failed")
	// ErrDecode means a seek or frame read failed in the middle of a run.
	ErrDecode = errors.New("decode failed")
	// ErrInvalidArgument is a contract violation by the caller.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRunInProgress is returned when a run is started while another is processing.
	ErrRunInProgress = errors.New("extraction run already in progress")

	ErrJobNotFound = errors.New("job not found")
)
