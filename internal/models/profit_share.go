package models

import "time"

// QuarterlyProfitShare 季度分红单
type QuarterlyProfitShare struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                                                        // 主键
	BatchNo            string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"batch_no"`                       // 批次号
	Year               int        `gorm:"not null;index:idx_profit_share_quarter,unique" json:"year"`                  // 年份
	Quarter            int        `gorm:"not null;index:idx_profit_share_quarter,unique" json:"quarter"`               // 季度（1-4）
	TotalProfit        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_profit"`                   // 季度项目总利润
	MemberShareAmount  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"member_share_amount"`            // 成员分红总额
	CompanyShareAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"company_share_amount"`           // 公司留存总额
	TotalActiveMembers int        `gorm:"not null;default:0" json:"total_active_members"`                              // 参与分红成员数
	DistributionMethod string     `gorm:"type:varchar(32);not null;default:'bp_weighted'" json:"distribution_method"`  // 分配方式
	Status             string     `gorm:"type:varchar(32);not null;index" json:"status"`                               // 状态
	CreatedBy          uint       `gorm:"not null" json:"created_by"`                                                  // 创建人
	ApprovedBy         *uint      `json:"approved_by,omitempty"`                                                       // 审批人
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`                                                       // 审批时间
	DistributedAt      *time.Time `json:"distributed_at,omitempty"`                                                    // 发放时间
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                                                     // 创建时间
	UpdatedAt          time.Time  `json:"updated_at"`                                                                  // 更新时间
}

// TableName 指定表名
func (QuarterlyProfitShare) TableName() string {
	return "quarterly_profit_shares"
}

// MemberProfitShare 成员季度分红明细
type MemberProfitShare struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                                              // 主键
	ProfitShareID     uint       `gorm:"not null;index;index:idx_member_profit_share_unique,unique" json:"profit_share_id"` // 分红单ID
	MemberID          uint       `gorm:"not null;index;index:idx_member_profit_share_unique,unique" json:"member_id"`       // 成员ID
	ProfessionalLevel string     `gorm:"type:varchar(32);not null" json:"professional_level"`                               // 计算时职业级别快照
	LevelMultiplier   Money      `gorm:"type:decimal(10,2);not null;default:0" json:"level_multiplier"`                     // 级别权重
	VolumeBasis       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"volume_basis"`                         // BP/业绩基数
	ShareAmount       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"share_amount"`                         // 分红金额
	Status            string     `gorm:"type:varchar(32);not null;index" json:"status"`                                     // 状态
	PaidAt            *time.Time `json:"paid_at,omitempty"`                                                                 // 发放时间
	CreatedAt         time.Time  `json:"created_at"`                                                                        // 创建时间
	UpdatedAt         time.Time  `json:"updated_at"`                                                                        // 更新时间

	ProfitShare QuarterlyProfitShare `gorm:"foreignKey:ProfitShareID" json:"profit_share,omitempty"` // 分红单
	Member      Member               `gorm:"foreignKey:MemberID" json:"member,omitempty"`            // 成员
}

// TableName 指定表名
func (MemberProfitShare) TableName() string {
	return "member_profit_shares"
}
