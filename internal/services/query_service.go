package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/hive/internal/access"
	"github.com/yukikurage/hive/internal/constants"
	"github.com/yukikurage/hive/internal/lifecycle"
	"github.com/yukikurage/hive/internal/logger"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/notify"
	"github.com/yukikurage/hive/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrQueryNotFound          = errors.New("query not found")
	ErrAskerNotFound          = errors.New("asking member not found")
	ErrAssigneeNotFound       = errors.New("assignee not found")
	ErrCreateForOthers        = errors.New("only admins may create queries for other members")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
)

// QueryService runs the query lifecycle: it plans transitions with the
// lifecycle rules, persists them atomically and notifies the people involved.
type QueryService struct {
	queries   repository.QueryRepository
	members   repository.MemberRepository
	notifier  *notify.Notifier
	aiService *AIService
	log       *logger.Logger
}

// NewQueryService creates a new QueryService. aiService may be nil.
func NewQueryService(
	queries repository.QueryRepository,
	members repository.MemberRepository,
	notifier *notify.Notifier,
	aiService *AIService,
	log *logger.Logger,
) *QueryService {
	return &QueryService{
		queries:   queries,
		members:   members,
		notifier:  notifier,
		aiService: aiService,
		log:       log,
	}
}

// CreateQueryInput represents input for creating a query
type CreateQueryInput struct {
	Issue string
	// AskedBy defaults to the actor when zero.
	AskedBy uint64
}

// Create files a new unassigned query.
func (s *QueryService) Create(ctx context.Context, actor lifecycle.Actor, input CreateQueryInput) (*models.Query, error) {
	if err := access.Check(actor.Role, access.OpCreateQuery, false); err != nil {
		return nil, err
	}

	askedBy := input.AskedBy
	if askedBy == 0 {
		askedBy = actor.MemberID
	}
	if askedBy != actor.MemberID && actor.Role != models.RoleAdmin {
		return nil, ErrCreateForOthers
	}

	query, err := lifecycle.NewQuery(input.Issue, askedBy)
	if err != nil {
		return nil, err
	}

	asker, err := s.members.FindByID(ctx, askedBy)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAskerNotFound
		}
		return nil, fmt.Errorf("failed to find asker: %w", err)
	}

	if err := s.queries.Create(ctx, &query); err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	query.AskedBy = *asker

	s.log.WithContext(ctx).Info("query created", "query_id", query.ID, "asked_by", askedBy)
	return &query, nil
}

// Get returns a query visible to actor. Queries the actor may not see are
// reported as not found.
func (s *QueryService) Get(ctx context.Context, actor lifecycle.Actor, id uint64) (*models.Query, error) {
	query, err := s.find(ctx, id, "AskedBy", "AssignedTo")
	if err != nil {
		return nil, err
	}
	if !visible(*query, actor) {
		return nil, ErrQueryNotFound
	}
	return query, nil
}

// ListQueriesInput represents paging options for listing queries
type ListQueriesInput struct {
	Page     int
	PageSize int
}

// List returns the queries visible to actor, newest first.
func (s *QueryService) List(ctx context.Context, actor lifecycle.Actor, input ListQueriesInput) ([]models.Query, int64, error) {
	filter := scopeFor(actor)
	filter.Page = input.Page
	filter.PageSize = input.PageSize

	queries, total, err := s.queries.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list queries: %w", err)
	}
	return queries, total, nil
}

// Stats counts the queries visible to actor per status.
func (s *QueryService) Stats(ctx context.Context, actor lifecycle.Actor) (repository.QueryStats, error) {
	stats, err := s.queries.Stats(ctx, scopeFor(actor))
	if err != nil {
		return repository.QueryStats{}, fmt.Errorf("failed to count queries: %w", err)
	}
	return stats, nil
}

// Staff lists every Head and Admin ordered by name.
func (s *QueryService) Staff(ctx context.Context) ([]models.Member, error) {
	members, err := s.members.ListStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list heads: %w", err)
	}
	return members, nil
}

// Leaderboard ranks Heads and Admins by resolved queries.
func (s *QueryService) Leaderboard(ctx context.Context) ([]models.Member, error) {
	members, err := s.members.Leaderboard(ctx, constants.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return members, nil
}

// Assign hands a query to a Head or Admin.
func (s *QueryService) Assign(ctx context.Context, actor lifecycle.Actor, queryID, targetID uint64) (*models.Query, error) {
	if err := access.Check(actor.Role, access.OpAssign, false); err != nil {
		return nil, err
	}

	query, err := s.find(ctx, queryID, "AskedBy")
	if err != nil {
		return nil, err
	}

	target, err := s.members.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("failed to find assignee: %w", err)
	}

	t, err := lifecycle.Assign(*query, *target, actor)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, query, t); err != nil {
		return nil, err
	}
	query.AssignedTo = target

	s.notifier.QueryAssigned(target, query)
	return query, nil
}

// Resolve closes a query with a reply.
func (s *QueryService) Resolve(ctx context.Context, actor lifecycle.Actor, queryID uint64, reply string) (*models.Query, error) {
	return s.close(ctx, actor, queryID, func(q models.Query) (lifecycle.Transition, error) {
		return lifecycle.Resolve(q, reply, actor)
	})
}

// Dismantle closes a query without resolving it.
func (s *QueryService) Dismantle(ctx context.Context, actor lifecycle.Actor, queryID uint64, reason string) (*models.Query, error) {
	return s.close(ctx, actor, queryID, func(q models.Query) (lifecycle.Transition, error) {
		return lifecycle.Dismantle(q, reason, actor)
	})
}

// SuggestReply drafts a reply for a query the actor could resolve. The draft
// is not stored.
func (s *QueryService) SuggestReply(ctx context.Context, actor lifecycle.Actor, queryID uint64) (string, error) {
	if s.aiService == nil {
		return "", ErrAIServiceNotConfigured
	}

	query, err := s.find(ctx, queryID)
	if err != nil {
		return "", err
	}
	if err := lifecycle.CanAct(*query, actor, access.OpSuggestReply); err != nil {
		return "", err
	}
	if query.Status.Terminal() {
		return "", lifecycle.ErrTerminal
	}

	return s.aiService.SuggestReply(ctx, query.Issue)
}

func (s *QueryService) close(
	ctx context.Context,
	actor lifecycle.Actor,
	queryID uint64,
	plan func(models.Query) (lifecycle.Transition, error),
) (*models.Query, error) {
	query, err := s.find(ctx, queryID, "AskedBy", "AssignedTo")
	if err != nil {
		return nil, err
	}

	t, err := plan(*query)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, query, t); err != nil {
		return nil, err
	}

	s.notifier.QueryClosed(&query.AskedBy, query)
	return query, nil
}

func (s *QueryService) apply(ctx context.Context, query *models.Query, t lifecycle.Transition) error {
	if err := s.queries.ApplyTransition(ctx, t); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return err
		}
		return fmt.Errorf("failed to apply transition: %w", err)
	}
	t.ApplyTo(query)

	s.log.WithContext(ctx).Info("query transitioned",
		"query_id", query.ID,
		"from", t.FromStatus,
		"to", t.ToStatus,
	)
	return nil
}

func (s *QueryService) find(ctx context.Context, id uint64, preload ...string) (*models.Query, error) {
	query, err := s.queries.FindByID(ctx, id, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueryNotFound
		}
		return nil, fmt.Errorf("failed to find query: %w", err)
	}
	return query, nil
}

// scopeFor restricts a listing to what actor may see.
func scopeFor(actor lifecycle.Actor) repository.QueryFilter {
	var filter repository.QueryFilter
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleHead:
		filter.AssignedToID = &actor.MemberID
	default:
		filter.AskedByID = &actor.MemberID
	}
	return filter
}

func visible(q models.Query, actor lifecycle.Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleHead:
		return lifecycle.IsAssignee(q, actor.MemberID)
	default:
		return q.AskedByID == actor.MemberID
	}
}
