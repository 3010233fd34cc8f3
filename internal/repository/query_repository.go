package repository

import (
	"context"
	"fmt"

	"github.com/yukikurage/hive/internal/database"
	"github.com/yukikurage/hive/internal/lifecycle"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/utils"
	"gorm.io/gorm"
)

// GormQueryRepository is a GORM implementation of QueryRepository
type GormQueryRepository struct {
	db *gorm.DB
}

// NewQueryRepository creates a new QueryRepository
func NewQueryRepository(db *gorm.DB) QueryRepository {
	return &GormQueryRepository{db: db}
}

func (r *GormQueryRepository) Create(ctx context.Context, query *models.Query) error {
	return r.db.WithContext(ctx).Create(query).Error
}

func (r *GormQueryRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Query, error) {
	var query models.Query
	db := r.db.WithContext(ctx)

	for _, p := range preload {
		db = db.Preload(p)
	}

	if err := db.First(&query, id).Error; err != nil {
		return nil, err
	}
	return &query, nil
}

func (r *GormQueryRepository) List(ctx context.Context, filter QueryFilter) ([]models.Query, int64, error) {
	base := r.filtered(ctx, filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params := utils.NewPaginationParams(filter.Page, filter.PageSize)

	var queries []models.Query
	if err := r.filtered(ctx, filter).
		Scopes(database.NewestFirst, database.Paginate(params)).
		Preload("AskedBy").
		Preload("AssignedTo").
		Find(&queries).Error; err != nil {
		return nil, 0, err
	}

	return queries, total, nil
}

func (r *GormQueryRepository) Stats(ctx context.Context, filter QueryFilter) (QueryStats, error) {
	var rows []struct {
		Status models.QueryStatus
		Count  int64
	}
	if err := r.filtered(ctx, filter).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return QueryStats{}, err
	}

	var stats QueryStats
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.QueryStatusUnassigned:
			stats.Unassigned = row.Count
		case models.QueryStatusAssigned:
			stats.Assigned = row.Count
		case models.QueryStatusResolved:
			stats.Resolved = row.Count
		case models.QueryStatusDismantled:
			stats.Dismantled = row.Count
		}
	}
	return stats, nil
}

// ApplyTransition updates the query row guarded by its expected status and
// assignee, then applies the counter deltas, all in one transaction.
func (r *GormQueryRepository) ApplyTransition(ctx context.Context, t lifecycle.Transition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":         t.ToStatus,
			"assigned_to_id": t.ToAssignee,
		}
		if t.Reply != nil {
			updates["reply"] = *t.Reply
		}

		guard := tx.Model(&models.Query{}).Where("id = ? AND status = ?", t.QueryID, t.FromStatus)
		if t.FromAssignee == nil {
			guard = guard.Where("assigned_to_id IS NULL")
		} else {
			guard = guard.Where("assigned_to_id = ?", *t.FromAssignee)
		}

		res := guard.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update query %d: %w", t.QueryID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}

		for _, d := range t.Deltas {
			res := tx.Model(&models.Member{}).
				Where("id = ?", d.MemberID).
				Updates(map[string]any{
					"queries_taken":    gorm.Expr("queries_taken + ?", d.Taken),
					"queries_resolved": gorm.Expr("queries_resolved + ?", d.Resolved),
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update counters of member %d: %w", d.MemberID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %d", ErrCounterTarget, d.MemberID)
			}
		}

		return nil
	})
}

func (r *GormQueryRepository) filtered(ctx context.Context, filter QueryFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Query{})
	if filter.AskedByID != nil {
		db = db.Where("asked_by_id = ?", *filter.AskedByID)
	}
	if filter.AssignedToID != nil {
		db = db.Where("assigned_to_id = ?", *filter.AssignedToID)
	}
	return db
}
