package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfitShareRepository 季度分红数据访问接口
type ProfitShareRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ProfitShareRepository

	Create(share *models.QuarterlyProfitShare) error
	Save(share *models.QuarterlyProfitShare) error
	GetByID(id uint) (*models.QuarterlyProfitShare, error)
	GetByIDForUpdate(id uint) (*models.QuarterlyProfitShare, error)
	GetByQuarter(year, quarter int) (*models.QuarterlyProfitShare, error)

	CreateMemberShares(shares []models.MemberProfitShare) error
	DeleteMemberShares(profitShareID uint) error
	GetMemberShareForUpdate(id uint) (*models.MemberProfitShare, error)
	SaveMemberShare(share *models.MemberProfitShare) error
	ListMemberShares(filter MemberShareListFilter) ([]models.MemberProfitShare, int64, error)
}

// GormProfitShareRepository GORM 季度分红仓储
type GormProfitShareRepository struct {
	db *gorm.DB
}

// NewProfitShareRepository 创建季度分红仓储
func NewProfitShareRepository(db *gorm.DB) *GormProfitShareRepository {
	return &GormProfitShareRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProfitShareRepository) WithTx(tx *gorm.DB) ProfitShareRepository {
	if tx == nil {
		return r
	}
	return &GormProfitShareRepository{db: tx}
}

// Transaction 执行事务
func (r *GormProfitShareRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建分红单
func (r *GormProfitShareRepository) Create(share *models.QuarterlyProfitShare) error {
	return r.db.Create(share).Error
}

// Save 保存分红单
func (r *GormProfitShareRepository) Save(share *models.QuarterlyProfitShare) error {
	return r.db.Save(share).Error
}

// GetByID 按ID查询分红单
func (r *GormProfitShareRepository) GetByID(id uint) (*models.QuarterlyProfitShare, error) {
	if id == 0 {
		return nil, nil
	}
	var share models.QuarterlyProfitShare
	if err := r.db.First(&share, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// GetByIDForUpdate 按ID锁定查询分红单
func (r *GormProfitShareRepository) GetByIDForUpdate(id uint) (*models.QuarterlyProfitShare, error) {
	if id == 0 {
		return nil, nil
	}
	var share models.QuarterlyProfitShare
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&share, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// GetByQuarter 按年份与季度查询分红单
func (r *GormProfitShareRepository) GetByQuarter(year, quarter int) (*models.QuarterlyProfitShare, error) {
	if year == 0 || quarter == 0 {
		return nil, nil
	}
	var share models.QuarterlyProfitShare
	if err := r.db.Where("year = ? AND quarter = ?", year, quarter).First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// CreateMemberShares 批量创建成员分红明细
func (r *GormProfitShareRepository) CreateMemberShares(shares []models.MemberProfitShare) error {
	if len(shares) == 0 {
		return nil
	}
	return r.db.Create(&shares).Error
}

// DeleteMemberShares 删除分红单下全部成员明细（重算前清理）
func (r *GormProfitShareRepository) DeleteMemberShares(profitShareID uint) error {
	if profitShareID == 0 {
		return nil
	}
	return r.db.Where("profit_share_id = ?", profitShareID).Delete(&models.MemberProfitShare{}).Error
}

// GetMemberShareForUpdate 按ID锁定查询成员分红明细
func (r *GormProfitShareRepository) GetMemberShareForUpdate(id uint) (*models.MemberProfitShare, error) {
	if id == 0 {
		return nil, nil
	}
	var share models.MemberProfitShare
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&share, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// SaveMemberShare 保存成员分红明细
func (r *GormProfitShareRepository) SaveMemberShare(share *models.MemberProfitShare) error {
	return r.db.Save(share).Error
}

// ListMemberShares 查询成员分红明细列表
func (r *GormProfitShareRepository) ListMemberShares(filter MemberShareListFilter) ([]models.MemberProfitShare, int64, error) {
	query := r.db.Model(&models.MemberProfitShare{})
	if filter.ProfitShareID != 0 {
		query = query.Where("profit_share_id = ?", filter.ProfitShareID)
	}
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.MemberProfitShare
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
