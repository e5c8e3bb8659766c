package models

import "time"

// Commission 多级分销佣金记录
type Commission struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                         // 主键
	EarnerID      uint       `gorm:"not null;index" json:"earner_id"`                              // 受益成员ID
	SourceID      uint       `gorm:"not null;index" json:"source_id"`                              // 业绩来源成员ID
	Level         int        `gorm:"not null;index" json:"level"`                                  // 层级（1-5，团队奖为 0）
	CommissionType string    `gorm:"type:varchar(32);not null;default:'referral';index" json:"commission_type"` // 佣金类型
	BaseAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`     // 佣金基数金额
	RatePercent   Money      `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`    // 佣金比例（百分比）
	Amount        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`          // 佣金金额
	Status        string     `gorm:"type:varchar(32);not null;index" json:"status"`                // 佣金状态
	SourcePath    string     `gorm:"type:varchar(1024)" json:"source_path"`                        // 计算时来源成员的物化路径快照
	EventID       string     `gorm:"type:varchar(64);index" json:"event_id"`                       // 触发事件ID
	PaidAt        *time.Time `gorm:"index" json:"paid_at,omitempty"`                               // 结算时间
	ReversedAt    *time.Time `json:"reversed_at,omitempty"`                                        // 冲正时间
	ReverseReason string     `gorm:"type:varchar(255)" json:"reverse_reason"`                      // 冲正原因
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                                   // 更新时间

	Earner Member `gorm:"foreignKey:EarnerID" json:"earner,omitempty"` // 受益成员
	Source Member `gorm:"foreignKey:SourceID" json:"source,omitempty"` // 来源成员
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}
