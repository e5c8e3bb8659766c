package models

import "time"

// PurchaseRecord 已确认的购买/订阅业绩记录
type PurchaseRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                  // 主键
	EventID    string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"event_id"` // 事件ID（幂等键）
	MemberID   uint      `gorm:"not null;index" json:"member_id"`                       // 业绩归属成员ID
	Amount     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`   // 税前套餐金额
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`                     // 事件发生时间
	CreatedAt  time.Time `json:"created_at"`                                            // 入库时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 归属成员
}

// TableName 指定表名
func (PurchaseRecord) TableName() string {
	return "purchase_records"
}
