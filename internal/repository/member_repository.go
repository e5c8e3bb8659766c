package repository

import (
	"errors"

	"github.com/fenxiao-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberRepository 分销网络成员数据访问接口
type MemberRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) MemberRepository

	GetByID(id uint) (*models.Member, error)
	GetByIDForUpdate(id uint) (*models.Member, error)
	GetByUserID(userID uint) (*models.Member, error)
	Create(member *models.Member) error
	Save(member *models.Member) error
	UpdatePlacement(id uint, referrerID *uint, path string, depth int) error

	CountDirectDownlines(memberID uint) (int64, error)
	ListDirectDownlines(memberID uint) ([]models.Member, error)
	ListSubtree(pathPrefix string) ([]models.Member, error)
	ListSubtreeForUpdate(pathPrefix string) ([]models.Member, error)
	ListByIDs(ids []uint) ([]models.Member, error)
	CountMembers() (int64, error)
	ListActiveMembers() ([]models.Member, error)
}

// GormMemberRepository GORM 成员仓储
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建成员仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMemberRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取成员
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 按ID锁定获取成员
func (r *GormMemberRepository) GetByIDForUpdate(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByUserID 按会员用户ID获取成员
func (r *GormMemberRepository) GetByUserID(userID uint) (*models.Member, error) {
	if userID == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("user_id = ?", userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// Create 创建成员
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// Save 保存成员
func (r *GormMemberRepository) Save(member *models.Member) error {
	return r.db.Save(member).Error
}

// UpdatePlacement 更新成员的树上位置（推荐人、路径与深度）
func (r *GormMemberRepository) UpdatePlacement(id uint, referrerID *uint, path string, depth int) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"referrer_id": referrerID,
			"path":        path,
			"depth":       depth,
		}).Error
}

// CountDirectDownlines 统计直接下级数量
func (r *GormMemberRepository) CountDirectDownlines(memberID uint) (int64, error) {
	if memberID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.Member{}).Where("referrer_id = ?", memberID).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListDirectDownlines 查询直接下级
func (r *GormMemberRepository) ListDirectDownlines(memberID uint) ([]models.Member, error) {
	if memberID == 0 {
		return []models.Member{}, nil
	}
	var rows []models.Member
	if err := r.db.Where("referrer_id = ?", memberID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSubtree 按路径前缀查询子树（含前缀对应成员自身）
func (r *GormMemberRepository) ListSubtree(pathPrefix string) ([]models.Member, error) {
	if pathPrefix == "" {
		return []models.Member{}, nil
	}
	var rows []models.Member
	if err := r.db.Where("path LIKE ?", pathPrefix+"%").Order("depth asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSubtreeForUpdate 按路径前缀锁定查询子树
func (r *GormMemberRepository) ListSubtreeForUpdate(pathPrefix string) ([]models.Member, error) {
	if pathPrefix == "" {
		return []models.Member{}, nil
	}
	var rows []models.Member
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("path LIKE ?", pathPrefix+"%").
		Order("depth asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByIDs 按ID批量查询成员
func (r *GormMemberRepository) ListByIDs(ids []uint) ([]models.Member, error) {
	if len(ids) == 0 {
		return []models.Member{}, nil
	}
	var rows []models.Member
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountMembers 统计成员总数
func (r *GormMemberRepository) CountMembers() (int64, error) {
	var total int64
	if err := r.db.Model(&models.Member{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListActiveMembers 查询所有活跃成员
func (r *GormMemberRepository) ListActiveMembers() ([]models.Member, error) {
	var rows []models.Member
	if err := r.db.Where("active = ?", true).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
