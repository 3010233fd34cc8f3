package database

import (
	"fmt"

	"github.com/yukikurage/hive/internal/logger"
	"github.com/yukikurage/hive/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the composite indexes the list, stats and leaderboard reads use.
func AddIndexes(db *gorm.DB, log *logger.Logger) error {
	indexes := []struct {
		model   any
		table   string
		name    string
		columns string
	}{
		// Head view: assigned_to + status
		{&models.Query{}, "queries", "idx_queries_assigned_status", "assigned_to_id, status"},
		// User view: own queries newest first
		{&models.Query{}, "queries", "idx_queries_asked_created", "asked_by_id, created_at"},
		// Leaderboard
		{&models.Member{}, "members", "idx_members_role_resolved", "role, queries_resolved"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			log.Debug("index already exists, skipping", "index", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info("created index", "index", idx.name, "table", idx.table, "columns", idx.columns)
	}

	return nil
}
