package api

import (
	"time"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

type registerMemberRequest struct {
	UserID            uint   `json:"user_id" binding:"required"`
	ReferrerID        *uint  `json:"referrer_id"`
	ProfessionalLevel string `json:"professional_level"`
	JoinedAt          string `json:"joined_at"`
	AllowSpillover    bool   `json:"allow_spillover"`
}

// RegisterMember 注册成员并落位到网络树
func (h *Handler) RegisterMember(c *gin.Context) {
	var req registerMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	joinedAt := time.Now()
	if req.JoinedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.JoinedAt)
		if err != nil {
			response.BadRequest(c, "invalid joined_at, expect RFC3339")
			return
		}
		joinedAt = parsed
	}

	member, err := h.NetworkService.RegisterMember(service.RegisterMemberInput{
		UserID:            req.UserID,
		ReferrerID:        req.ReferrerID,
		ProfessionalLevel: req.ProfessionalLevel,
		JoinedAt:          joinedAt,
		AllowSpillover:    req.AllowSpillover,
	})
	if err != nil {
		respondWithMappedError(c, err, "register member failed")
		return
	}
	response.Success(c, member)
}

type moveSubtreeRequest struct {
	NewReferrerID   uint `json:"new_referrer_id" binding:"required"`
	IncludeDownline bool `json:"include_downline"`
}

// MoveSubtree 子树迁移（整树搬迁或摘除单点）
func (h *Handler) MoveSubtree(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	var req moveSubtreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.NetworkService.MoveSubtree(memberID, req.NewReferrerID, req.IncludeDownline); err != nil {
		respondWithMappedError(c, err, "move subtree failed")
		return
	}
	response.SuccessWithMsg(c, "subtree moved", gin.H{
		"member_id":        memberID,
		"new_referrer_id":  req.NewReferrerID,
		"include_downline": req.IncludeDownline,
	})
}

// GetDownlineTree 查询下级网络树快照
func (h *Handler) GetDownlineTree(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	maxDepth := parseIntQuery(c, "depth", 0)

	tree, err := h.NetworkService.GetDownlineTree(c.Request.Context(), memberID, maxDepth)
	if err != nil {
		respondWithMappedError(c, err, "load downline tree failed")
		return
	}
	response.Success(c, tree)
}

// ListDirectDownlines 查询成员直接下级列表
func (h *Handler) ListDirectDownlines(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	downlines, err := h.NetworkService.ListDirectDownlines(memberID)
	if err != nil {
		respondWithMappedError(c, err, "list direct downlines failed")
		return
	}
	response.Success(c, gin.H{
		"member_id": memberID,
		"downlines": downlines,
	})
}
