package repository

import (
	"context"

	"github.com/yukikurage/hive/internal/models"
	"gorm.io/gorm"
)

var staffRoles = []models.Role{models.RoleHead, models.RoleAdmin}

// GormMemberRepository is a GORM implementation of MemberRepository
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &GormMemberRepository{db: db}
}

func (r *GormMemberRepository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *GormMemberRepository) FindByID(ctx context.Context, id uint64) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *GormMemberRepository) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *GormMemberRepository) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormMemberRepository) ListStaff(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).
		Where("role IN ?", staffRoles).
		Order("name ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *GormMemberRepository) Leaderboard(ctx context.Context, limit int) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).
		Where("role IN ?", staffRoles).
		Order("queries_resolved DESC").
		Order("name ASC").
		Limit(limit).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
