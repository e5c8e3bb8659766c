package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/metrics"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"gorm.io/gorm"
)

const (
	networkTreeCacheTTL        = time.Minute
	networkTreeVersionCacheKey = "network:tree:version"
)

// NetworkService 分销网络树业务服务（注册落位与子树重组）
type NetworkService struct {
	repo               repository.MemberRepository
	maxDirectDownlines int
	matrixDepth        int
}

// NewNetworkService 创建分销网络服务
func NewNetworkService(repo repository.MemberRepository, cfg config.NetworkConfig) *NetworkService {
	maxDirect := cfg.MaxDirectDownlines
	if maxDirect <= 0 {
		maxDirect = constants.DefaultMaxDirectDownlines
	}
	matrixDepth := cfg.MatrixDepth
	if matrixDepth <= 0 {
		matrixDepth = constants.DefaultMatrixDepth
	}
	return &NetworkService{
		repo:               repo,
		maxDirectDownlines: maxDirect,
		matrixDepth:        matrixDepth,
	}
}

// RegisterMemberInput 注册成员输入
type RegisterMemberInput struct {
	UserID            uint
	ReferrerID        *uint // 为空表示创建根节点
	ProfessionalLevel string
	JoinedAt          time.Time
	AllowSpillover    bool // 推荐人满员时是否允许溢出到其子树空位
}

// TreeNode 下级网络树节点
type TreeNode struct {
	ID                uint        `json:"id"`
	UserID            uint        `json:"user_id"`
	ProfessionalLevel string      `json:"professional_level"`
	Depth             int         `json:"depth"`
	Active            bool        `json:"active"`
	Children          []*TreeNode `json:"children"`
}

// TreeView 下级网络树只读快照
type TreeView struct {
	Root         *TreeNode `json:"root"`
	TotalMembers int       `json:"total_members"`
	MaxDepth     int       `json:"max_depth"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// RegisterMember 注册成员并落位到网络树
//
// 推荐人直推已满时：AllowSpillover 为 false 直接返回 ErrCapacityExceeded；
// 为 true 时按层序在推荐人子树内寻找第一个未满员的活跃节点落位（溢出安置）。
func (s *NetworkService) RegisterMember(input RegisterMemberInput) (*models.Member, error) {
	if input.UserID == 0 {
		return nil, fmt.Errorf("user id is required")
	}
	existing, err := s.repo.GetByUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	level := strings.TrimSpace(input.ProfessionalLevel)
	if level == "" {
		level = constants.ProfessionalLevelAssociate
	}
	joinedAt := input.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now()
	}

	member := &models.Member{
		UserID:            input.UserID,
		ProfessionalLevel: level,
		Active:            true,
		JoinedAt:          joinedAt,
	}

	err = s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var placement *models.Member
		if input.ReferrerID != nil {
			referrer, err := txRepo.GetByIDForUpdate(*input.ReferrerID)
			if err != nil {
				return err
			}
			if referrer == nil {
				return ErrReferrerNotFound
			}
			placement, err = s.resolvePlacement(txRepo, referrer, input.AllowSpillover)
			if err != nil {
				return err
			}
		}

		if placement != nil {
			member.ReferrerID = &placement.ID
			member.Depth = placement.Depth + 1
		}
		if err := txRepo.Create(member); err != nil {
			return err
		}

		// 路径依赖自身主键，入库后再回填
		parentPath := ""
		if placement != nil {
			parentPath = placement.Path
		}
		member.Path = models.BuildMemberPath(parentPath, member.ID)
		return txRepo.UpdatePlacement(member.ID, member.ReferrerID, member.Path, member.Depth)
	})
	if err != nil {
		return nil, err
	}

	s.bumpTreeVersion()
	logger.Infow("network_member_registered",
		"member_id", member.ID,
		"user_id", member.UserID,
		"referrer_id", member.ReferrerID,
		"path", member.Path,
	)
	return member, nil
}

// resolvePlacement 确定新成员的实际安置父节点
func (s *NetworkService) resolvePlacement(txRepo repository.MemberRepository, referrer *models.Member, allowSpillover bool) (*models.Member, error) {
	count, err := txRepo.CountDirectDownlines(referrer.ID)
	if err != nil {
		return nil, err
	}
	if count < int64(s.maxDirectDownlines) {
		return referrer, nil
	}
	if !allowSpillover {
		return nil, ErrCapacityExceeded
	}

	// 层序扫描推荐人子树，找第一个未满员的活跃节点
	subtree, err := txRepo.ListSubtree(referrer.Path)
	if err != nil {
		return nil, err
	}
	directCounts := make(map[uint]int, len(subtree))
	for _, node := range subtree {
		if node.ReferrerID != nil {
			directCounts[*node.ReferrerID]++
		}
	}
	for i := range subtree {
		node := &subtree[i]
		if !node.Active {
			continue
		}
		if directCounts[node.ID] < s.maxDirectDownlines {
			return node, nil
		}
	}
	return nil, ErrCapacityExceeded
}

// MoveSubtree 将成员迁移到新推荐人名下
//
// includeDownline 为 true 时整棵子树随迁，所有后代路径与深度在同一事务内重写；
// 为 false 时原直接下级拼接回成员原推荐人名下，成员单独迁出。
// 环路与容量违规直接报错，不做任何部分应用。
func (s *NetworkService) MoveSubtree(memberID, newReferrerID uint, includeDownline bool) error {
	if memberID == 0 || newReferrerID == 0 {
		return ErrMemberNotFound
	}
	if memberID == newReferrerID {
		return ErrCircularReference
	}

	err := s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		member, err := txRepo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		newReferrer, err := txRepo.GetByIDForUpdate(newReferrerID)
		if err != nil {
			return err
		}
		if newReferrer == nil {
			return ErrMemberNotFound
		}

		// 物化路径即祖先链，O(路径长度) 判环
		if newReferrer.PathContains(memberID) {
			return ErrCircularReference
		}
		// 已在目标推荐人名下，视为无结构变更
		if member.ReferrerID != nil && *member.ReferrerID == newReferrerID {
			return nil
		}

		count, err := txRepo.CountDirectDownlines(newReferrerID)
		if err != nil {
			return err
		}
		if count >= int64(s.maxDirectDownlines) {
			return ErrCapacityExceeded
		}

		subtree, err := txRepo.ListSubtreeForUpdate(member.Path)
		if err != nil {
			return err
		}

		newMemberPath := models.BuildMemberPath(newReferrer.Path, member.ID)
		if includeDownline {
			return s.relocateWithDownline(txRepo, member, newReferrerID, newMemberPath, subtree)
		}
		return s.relocateSpliced(txRepo, member, newReferrerID, newMemberPath, newReferrer.Depth+1, subtree)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCircularReference):
			metrics.ReorgRejectedTotal.WithLabelValues("circular_reference").Inc()
		case errors.Is(err, ErrCapacityExceeded):
			metrics.ReorgRejectedTotal.WithLabelValues("capacity_exceeded").Inc()
		}
		return err
	}

	s.bumpTreeVersion()
	logger.Infow("network_subtree_moved",
		"member_id", memberID,
		"new_referrer_id", newReferrerID,
		"include_downline", includeDownline,
	)
	return nil
}

// relocateWithDownline 整棵子树随成员迁移，重写全部后代路径
func (s *NetworkService) relocateWithDownline(txRepo repository.MemberRepository, member *models.Member, newReferrerID uint, newMemberPath string, subtree []models.Member) error {
	oldPrefix := member.Path
	for i := range subtree {
		node := &subtree[i]
		newPath := newMemberPath + node.Path[len(oldPrefix):]
		depth := len(models.ParsePathIDs(newPath)) - 1
		referrerID := node.ReferrerID
		if node.ID == member.ID {
			referrerID = &newReferrerID
		}
		if err := txRepo.UpdatePlacement(node.ID, referrerID, newPath, depth); err != nil {
			return err
		}
	}
	return nil
}

// relocateSpliced 成员单独迁出，原直接下级拼接回其原推荐人名下
func (s *NetworkService) relocateSpliced(txRepo repository.MemberRepository, member *models.Member, newReferrerID uint, newMemberPath string, newDepth int, subtree []models.Member) error {
	// 原父路径 = 成员路径去掉末段自身ID
	parentPath := strings.TrimSuffix(member.Path, fmt.Sprintf("%d/", member.ID))
	formerReferrerID := member.ReferrerID

	for i := range subtree {
		node := &subtree[i]
		if node.ID == member.ID {
			continue
		}
		// 从后代路径中摘除被迁出的成员一级
		newPath := parentPath + node.Path[len(member.Path):]
		depth := len(models.ParsePathIDs(newPath)) - 1
		referrerID := node.ReferrerID
		if node.ReferrerID != nil && *node.ReferrerID == member.ID {
			referrerID = formerReferrerID
		}
		if err := txRepo.UpdatePlacement(node.ID, referrerID, newPath, depth); err != nil {
			return err
		}
	}
	return txRepo.UpdatePlacement(member.ID, &newReferrerID, newMemberPath, newDepth)
}

// ListDirectDownlines 查询成员的直接下级列表
func (s *NetworkService) ListDirectDownlines(memberID uint) ([]models.Member, error) {
	member, err := s.repo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return s.repo.ListDirectDownlines(memberID)
}

// GetDownlineTree 获取成员下级网络树只读快照（带缓存）
func (s *NetworkService) GetDownlineTree(ctx context.Context, memberID uint, maxDepth int) (*TreeView, error) {
	member, err := s.repo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	if maxDepth <= 0 {
		maxDepth = s.matrixDepth
	}

	cacheKey := s.treeCacheKey(memberID, maxDepth)
	var cached TreeView
	if hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached); cacheErr != nil {
		logger.Warnw("network_tree_cache_read_failed", "error", cacheErr, "key", cacheKey)
	} else if hit {
		return &cached, nil
	}

	subtree, err := s.repo.ListSubtree(member.Path)
	if err != nil {
		return nil, err
	}

	maxNodeDepth := member.Depth + maxDepth
	nodes := make(map[uint]*TreeNode, len(subtree))
	var root *TreeNode
	total := 0
	for i := range subtree {
		row := &subtree[i]
		if row.Depth > maxNodeDepth {
			continue
		}
		node := &TreeNode{
			ID:                row.ID,
			UserID:            row.UserID,
			ProfessionalLevel: row.ProfessionalLevel,
			Depth:             row.Depth,
			Active:            row.Active,
			Children:          []*TreeNode{},
		}
		nodes[row.ID] = node
		total++
		if row.ID == member.ID {
			root = node
			continue
		}
		if row.ReferrerID != nil {
			if parent, ok := nodes[*row.ReferrerID]; ok {
				parent.Children = append(parent.Children, node)
			}
		}
	}
	if root == nil {
		return nil, ErrMemberNotFound
	}

	view := &TreeView{
		Root:         root,
		TotalMembers: total,
		MaxDepth:     maxDepth,
		GeneratedAt:  time.Now(),
	}
	if cacheErr := cache.SetJSON(ctx, cacheKey, view, networkTreeCacheTTL); cacheErr != nil {
		logger.Warnw("network_tree_cache_write_failed", "error", cacheErr, "key", cacheKey)
	}
	return view, nil
}

// treeCacheKey 树快照缓存键，包含全局树版本号，结构变更后自动失效
func (s *NetworkService) treeCacheKey(memberID uint, maxDepth int) string {
	version, err := cache.GetString(context.Background(), networkTreeVersionCacheKey)
	if err != nil || version == "" {
		version = "0"
	}
	return fmt.Sprintf("network:tree:v%s:%d:%d", version, memberID, maxDepth)
}

// bumpTreeVersion 结构变更后递增树版本号，使全部树快照缓存失效
func (s *NetworkService) bumpTreeVersion() {
	if _, err := cache.Incr(context.Background(), networkTreeVersionCacheKey); err != nil {
		logger.Warnw("network_tree_version_bump_failed", "error", err)
	}
}
