package health

import "context"

// StorePinger checks the counter and cache store.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// DirectoryChecker checks the place directory.
type DirectoryChecker interface {
	HealthCheck(ctx context.Context) error
}
