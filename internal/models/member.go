package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Member 分销网络成员节点
type Member struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                  // 主键
	UserID            uint       `gorm:"not null;uniqueIndex" json:"user_id"`                   // 会员系统用户ID
	ReferrerID        *uint      `gorm:"index" json:"referrer_id,omitempty"`                    // 推荐人（根节点为空）
	Path              string     `gorm:"type:varchar(1024);not null;index" json:"path"`         // 物化路径，形如 /1/5/9/
	Depth             int        `gorm:"not null;default:0;index" json:"depth"`                 // 深度（根为 0）
	ProfessionalLevel string     `gorm:"type:varchar(32);not null;default:'associate'" json:"professional_level"` // 职业级别
	Active            bool       `gorm:"not null;default:true;index" json:"active"`             // 活跃标记（从不物理删除）
	JoinedAt          time.Time  `gorm:"index" json:"joined_at"`                                // 加入时间
	CreatedAt         time.Time  `json:"created_at"`                                            // 创建时间
	UpdatedAt         time.Time  `json:"updated_at"`                                            // 更新时间
	DeactivatedAt     *time.Time `json:"deactivated_at,omitempty"`                              // 停用时间

	Referrer *Member `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"` // 推荐人
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}

const pathSeparator = "/"

// BuildMemberPath 依据父路径拼接成员自身的物化路径
func BuildMemberPath(parentPath string, memberID uint) string {
	trimmed := strings.TrimSpace(parentPath)
	if trimmed == "" || trimmed == pathSeparator {
		return fmt.Sprintf("/%d/", memberID)
	}
	if !strings.HasSuffix(trimmed, pathSeparator) {
		trimmed += pathSeparator
	}
	return fmt.Sprintf("%s%d/", trimmed, memberID)
}

// PathIDs 解析物化路径为从根到自身的成员ID序列
func (m *Member) PathIDs() []uint {
	return ParsePathIDs(m.Path)
}

// AncestorIDs 返回祖先ID序列，最近的祖先在前，不含自身
func (m *Member) AncestorIDs() []uint {
	ids := m.PathIDs()
	if len(ids) <= 1 {
		return nil
	}
	ancestors := make([]uint, 0, len(ids)-1)
	for i := len(ids) - 2; i >= 0; i-- {
		ancestors = append(ancestors, ids[i])
	}
	return ancestors
}

// PathContains 判断路径中是否包含指定成员
func (m *Member) PathContains(memberID uint) bool {
	return strings.Contains(m.Path, fmt.Sprintf("/%d/", memberID))
}

// ParsePathIDs 解析物化路径字符串
func ParsePathIDs(path string) []uint {
	parts := strings.Split(strings.Trim(strings.TrimSpace(path), pathSeparator), pathSeparator)
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}
