// Package testutil provides database and fixture helpers shared by tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/hive/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. The pool is pinned to
// one connection so every statement sees the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, db.AutoMigrate(&models.Member{}, &models.Query{}))
	return db
}

// CreateMember inserts a member whose password is "password123" and, for
// staff roles, whose PIN is "4242".
func CreateMember(t *testing.T, db *gorm.DB, name, email string, role models.Role) *models.Member {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	member := &models.Member{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if role.CanTakeQueries() {
		pin, err := bcrypt.GenerateFromPassword([]byte("4242"), bcrypt.MinCost)
		require.NoError(t, err)
		member.PinHash = string(pin)
	}

	require.NoError(t, db.Create(member).Error)
	return member
}

// CreateQuery inserts a query directly, bypassing the lifecycle.
func CreateQuery(t *testing.T, db *gorm.DB, issue string, askedBy uint64, status models.QueryStatus, assignee *uint64) *models.Query {
	t.Helper()

	query := &models.Query{
		Issue:        issue,
		AskedByID:    askedBy,
		Status:       status,
		AssignedToID: assignee,
	}
	require.NoError(t, db.Create(query).Error)
	return query
}

// ReloadMember fetches the current row for id.
func ReloadMember(t *testing.T, db *gorm.DB, id uint64) *models.Member {
	t.Helper()

	var member models.Member
	require.NoError(t, db.First(&member, id).Error)
	return &member
}

// ReloadQuery fetches the current row for id.
func ReloadQuery(t *testing.T, db *gorm.DB, id uint64) *models.Query {
	t.Helper()

	var query models.Query
	require.NoError(t, db.First(&query, id).Error)
	return &query
}
