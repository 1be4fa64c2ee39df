package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrImportJobNotFound  = errors.New("import job not found")
	ErrRepositoryMissing  = errors.New("repository storage not found")
)
