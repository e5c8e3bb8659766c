package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRepository 业绩记录数据访问接口
type PurchaseRepository interface {
	WithTx(tx *gorm.DB) PurchaseRepository

	Create(record *models.PurchaseRecord) error
	GetByEventID(eventID string) (*models.PurchaseRecord, error)
	SumByMember(memberID uint, from, to time.Time) (decimal.Decimal, error)
	SumByMembers(memberIDs []uint, from, to time.Time) (decimal.Decimal, error)
	SumByMembersGrouped(memberIDs []uint, from, to time.Time) (map[uint]decimal.Decimal, error)
}

// GormPurchaseRepository GORM 业绩记录仓储
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository 创建业绩记录仓储
func NewPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPurchaseRepository) WithTx(tx *gorm.DB) PurchaseRepository {
	if tx == nil {
		return r
	}
	return &GormPurchaseRepository{db: tx}
}

// Create 创建业绩记录
func (r *GormPurchaseRepository) Create(record *models.PurchaseRecord) error {
	return r.db.Create(record).Error
}

// GetByEventID 按事件ID查询业绩记录（幂等判断）
func (r *GormPurchaseRepository) GetByEventID(eventID string) (*models.PurchaseRecord, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return nil, nil
	}
	var record models.PurchaseRecord
	if err := r.db.Where("event_id = ?", normalized).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SumByMember 汇总单个成员周期内业绩
func (r *GormPurchaseRepository) SumByMember(memberID uint, from, to time.Time) (decimal.Decimal, error) {
	if memberID == 0 {
		return decimal.Zero, nil
	}
	return r.SumByMembers([]uint{memberID}, from, to)
}

// SumByMembers 汇总一组成员周期内业绩总额
func (r *GormPurchaseRepository) SumByMembers(memberIDs []uint, from, to time.Time) (decimal.Decimal, error) {
	if len(memberIDs) == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.PurchaseRecord{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("member_id IN ? AND occurred_at >= ? AND occurred_at < ?", memberIDs, from, to).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// SumByMembersGrouped 按成员分组汇总周期内业绩
func (r *GormPurchaseRepository) SumByMembersGrouped(memberIDs []uint, from, to time.Time) (map[uint]decimal.Decimal, error) {
	result := make(map[uint]decimal.Decimal, len(memberIDs))
	if len(memberIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		MemberID uint            `gorm:"column:member_id"`
		Total    decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.PurchaseRecord{}).
		Select("member_id, COALESCE(SUM(amount), 0) AS total").
		Where("member_id IN ? AND occurred_at >= ? AND occurred_at < ?", memberIDs, from, to).
		Group("member_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.MemberID] = row.Total.Round(2)
	}
	return result, nil
}
