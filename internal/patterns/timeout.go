package patterns

import (
	"context"
	"time"
)

// WithTimeout creates a context with timeout for fail-fast behavior
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
}

// DefaultTimeout bounds outbound gateway requests. The transaction processor
// gives no contractual deadline, so expiry is treated like any other
// transport failure.
const DefaultTimeout = 3 * time.Second

// CatalogTimeout is a longer timeout for the catalog fetch, whose payload
// can be large.
const CatalogTimeout = 10 * time.Second
