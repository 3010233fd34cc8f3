package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/hive/internal/lifecycle"
	"github.com/yukikurage/hive/internal/models"
)

var (
	// ErrStaleTransition is returned when the query no longer matches the
	// state a transition was planned against.
	ErrStaleTransition = errors.New("query repository: query was modified concurrently")
	// ErrCounterTarget is returned when a counter delta names a missing member.
	ErrCounterTarget = errors.New("query repository: counter target member not found")
)

// QueryFilter holds filtering options for listing queries
type QueryFilter struct {
	AskedByID    *uint64
	AssignedToID *uint64
	Page         int
	PageSize     int
}

// QueryStats holds per-status counts for a filtered set of queries
type QueryStats struct {
	Total      int64
	Unassigned int64
	Assigned   int64
	Resolved   int64
	Dismantled int64
}

// Pending is the number of queries still open.
func (s QueryStats) Pending() int64 {
	return s.Assigned + s.Unassigned
}

// QueryRepository defines the interface for query data access
type QueryRepository interface {
	// Create creates a new query
	Create(ctx context.Context, query *models.Query) error

	// FindByID finds a query by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Query, error)

	// List retrieves queries newest first with filtering and pagination
	List(ctx context.Context, filter QueryFilter) ([]models.Query, int64, error)

	// Stats counts queries per status
	Stats(ctx context.Context, filter QueryFilter) (QueryStats, error)

	// ApplyTransition writes a planned status change and its counter deltas
	// in one transaction
	ApplyTransition(ctx context.Context, t lifecycle.Transition) error
}

// MemberRepository defines the interface for member data access
type MemberRepository interface {
	// Create creates a new member
	Create(ctx context.Context, member *models.Member) error

	// FindByID finds a member by ID
	FindByID(ctx context.Context, id uint64) (*models.Member, error)

	// FindByEmail finds a member by normalized email
	FindByEmail(ctx context.Context, email string) (*models.Member, error)

	// UpdatePassword replaces a member's password hash
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error

	// ListStaff lists Head and Admin members ordered by name
	ListStaff(ctx context.Context) ([]models.Member, error)

	// Leaderboard lists the top Head and Admin members by resolved queries
	Leaderboard(ctx context.Context, limit int) ([]models.Member, error)
}
