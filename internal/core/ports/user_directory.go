package ports

import (
	"context"

	"github.com/titledesk/timeline/internal/core/domain"
)

// UserDirectory supplies user display metadata on demand. In production it
// fronts the ticket service's user data; the timeline subsystem never owns
// user lifecycle.
type UserDirectory interface {
	// ByIDs returns display refs for the given ids. Unknown ids are
	// simply absent from the result.
	ByIDs(ctx context.Context, ids []int64) (map[int64]domain.UserRef, error)

	// ActiveByIDs is ByIDs restricted to active users.
	ActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.UserRef, error)
}
