package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	Create(commission *models.Commission) error
	CreateBatch(commissions []models.Commission) error
	Update(commission *models.Commission) error
	GetByID(id uint) (*models.Commission, error)
	ListPending() ([]models.Commission, error)
	ListByIDsForUpdate(ids []uint) ([]models.Commission, error)
	ListByEventID(eventID string) ([]models.Commission, error)
	BulkUpdateStatus(ids []uint, updates map[string]interface{}) (int64, error)
	SumByEarnerAndRange(earnerID uint, from, to time.Time, statuses []string) (decimal.Decimal, error)
	StatsByLevel(earnerID uint) (map[int]decimal.Decimal, error)
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
}

// GormCommissionRepository GORM 佣金仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(commission *models.Commission) error {
	return r.db.Create(commission).Error
}

// CreateBatch 批量创建佣金记录
func (r *GormCommissionRepository) CreateBatch(commissions []models.Commission) error {
	if len(commissions) == 0 {
		return nil
	}
	return r.db.Create(&commissions).Error
}

// Update 保存佣金记录全部字段
func (r *GormCommissionRepository) Update(commission *models.Commission) error {
	if commission == nil || commission.ID == 0 {
		return nil
	}
	return r.db.Save(commission).Error
}

// GetByID 按ID查询佣金记录
func (r *GormCommissionRepository) GetByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// ListPending 查询全部待结算佣金
func (r *GormCommissionRepository) ListPending() ([]models.Commission, error) {
	var rows []models.Commission
	if err := r.db.Where("status = ?", constants.CommissionStatusPending).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByIDsForUpdate 按ID批量锁定查询佣金记录
func (r *GormCommissionRepository) ListByIDsForUpdate(ids []uint) ([]models.Commission, error) {
	if len(ids) == 0 {
		return []models.Commission{}, nil
	}
	var rows []models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByEventID 按触发事件查询佣金记录
func (r *GormCommissionRepository) ListByEventID(eventID string) ([]models.Commission, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return []models.Commission{}, nil
	}
	var rows []models.Commission
	if err := r.db.Where("event_id = ?", normalized).Order("level asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// BulkUpdateStatus 批量更新佣金状态
func (r *GormCommissionRepository) BulkUpdateStatus(ids []uint, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Commission{}).Where("id IN ?", ids).Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumByEarnerAndRange 汇总成员指定时间区间的佣金金额
func (r *GormCommissionRepository) SumByEarnerAndRange(earnerID uint, from, to time.Time, statuses []string) (decimal.Decimal, error) {
	if earnerID == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.Commission{}).
		Where("earner_id = ? AND created_at >= ? AND created_at < ?", earnerID, from, to)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// StatsByLevel 按层级汇总成员佣金金额
func (r *GormCommissionRepository) StatsByLevel(earnerID uint) (map[int]decimal.Decimal, error) {
	result := make(map[int]decimal.Decimal)
	if earnerID == 0 {
		return result, nil
	}
	var rows []struct {
		Level int             `gorm:"column:level"`
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.Commission{}).
		Select("level, COALESCE(SUM(amount), 0) AS total").
		Where("earner_id = ? AND status <> ?", earnerID, constants.CommissionStatusReversed).
		Group("level").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.Level] = row.Total.Round(2)
	}
	return result, nil
}

// List 查询佣金列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{})
	if filter.EarnerID != 0 {
		query = query.Where("earner_id = ?", filter.EarnerID)
	}
	if filter.SourceID != 0 {
		query = query.Where("source_id = ?", filter.SourceID)
	}
	if filter.Level != 0 {
		query = query.Where("level = ?", filter.Level)
	}
	if ctype := strings.TrimSpace(filter.CommissionType); ctype != "" {
		query = query.Where("commission_type = ?", ctype)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Commission
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
