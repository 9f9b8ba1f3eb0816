package worker

import "context"

// Worker is a long-running unit supervised by Manager. Start blocks
// until ctx is done or the worker fails.
type Worker interface {
	Start(ctx context.Context) error
}
