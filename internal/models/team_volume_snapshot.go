package models

import "time"

// TeamVolumeSnapshot 成员团队业绩快照（每成员每周期一条，重算覆盖）
type TeamVolumeSnapshot struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                                              // 主键
	MemberID        uint      `gorm:"not null;index;index:idx_team_volume_member_period,unique" json:"member_id"`        // 成员ID
	PeriodStart     time.Time `gorm:"not null;index:idx_team_volume_member_period,unique" json:"period_start"`           // 周期起点
	PeriodEnd       time.Time `gorm:"not null" json:"period_end"`                                                        // 周期终点
	PersonalVolume  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"personal_volume"`                      // 个人业绩
	TeamVolume      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"team_volume"`                          // 团队业绩（含自身，按深度上限）
	ActiveReferrals int       `gorm:"not null;default:0" json:"active_referrals"`                                        // 活跃直推人数
	TeamDepth       int       `gorm:"not null;default:0" json:"team_depth"`                                              // 团队最长链深度
	ComputedAt      time.Time `gorm:"not null" json:"computed_at"`                                                       // 重算时间
	CreatedAt       time.Time `json:"created_at"`                                                                        // 创建时间
	UpdatedAt       time.Time `json:"updated_at"`                                                                        // 更新时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 成员
}

// TableName 指定表名
func (TeamVolumeSnapshot) TableName() string {
	return "team_volume_snapshots"
}
