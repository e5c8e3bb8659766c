package repository

import (
	"errors"
	"time"

	"github.com/fenxiao-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamVolumeRepository 团队业绩快照数据访问接口
type TeamVolumeRepository interface {
	WithTx(tx *gorm.DB) TeamVolumeRepository

	Upsert(snapshot *models.TeamVolumeSnapshot) error
	GetByMemberAndPeriod(memberID uint, periodStart time.Time) (*models.TeamVolumeSnapshot, error)
	GetLatestByMember(memberID uint) (*models.TeamVolumeSnapshot, error)
	ListHistory(memberID uint, limit int) ([]models.TeamVolumeSnapshot, error)
}

// GormTeamVolumeRepository GORM 团队业绩仓储
type GormTeamVolumeRepository struct {
	db *gorm.DB
}

// NewTeamVolumeRepository 创建团队业绩仓储
func NewTeamVolumeRepository(db *gorm.DB) *GormTeamVolumeRepository {
	return &GormTeamVolumeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTeamVolumeRepository) WithTx(tx *gorm.DB) TeamVolumeRepository {
	if tx == nil {
		return r
	}
	return &GormTeamVolumeRepository{db: tx}
}

// Upsert 写入快照，同成员同周期覆盖更新
func (r *GormTeamVolumeRepository) Upsert(snapshot *models.TeamVolumeSnapshot) error {
	if snapshot == nil {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end",
			"personal_volume",
			"team_volume",
			"active_referrals",
			"team_depth",
			"computed_at",
			"updated_at",
		}),
	}).Create(snapshot).Error
}

// GetByMemberAndPeriod 按成员与周期查询快照
func (r *GormTeamVolumeRepository) GetByMemberAndPeriod(memberID uint, periodStart time.Time) (*models.TeamVolumeSnapshot, error) {
	if memberID == 0 {
		return nil, nil
	}
	var snapshot models.TeamVolumeSnapshot
	if err := r.db.Where("member_id = ? AND period_start = ?", memberID, periodStart).
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// GetLatestByMember 查询成员最新一条快照
func (r *GormTeamVolumeRepository) GetLatestByMember(memberID uint) (*models.TeamVolumeSnapshot, error) {
	if memberID == 0 {
		return nil, nil
	}
	var snapshot models.TeamVolumeSnapshot
	if err := r.db.Where("member_id = ?", memberID).
		Order("period_start desc").
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// ListHistory 查询成员历史快照
func (r *GormTeamVolumeRepository) ListHistory(memberID uint, limit int) ([]models.TeamVolumeSnapshot, error) {
	if memberID == 0 {
		return []models.TeamVolumeSnapshot{}, nil
	}
	if limit <= 0 {
		limit = 12
	}
	var rows []models.TeamVolumeSnapshot
	if err := r.db.Where("member_id = ?", memberID).
		Order("period_start desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
