package api

import (
	"errors"
	"io"
	"time"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type recomputeVolumeRequest struct {
	PeriodStart string `json:"period_start"`
}

// RecomputeTeamVolume 重算成员在指定周期的团队业绩快照
func (h *Handler) RecomputeTeamVolume(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	// 允许空请求体，缺省重算当前月份
	var req recomputeVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	periodStart, _ := service.MonthlyPeriodOf(time.Now())
	if req.PeriodStart != "" {
		parsed, err := time.Parse(time.RFC3339, req.PeriodStart)
		if err != nil {
			response.BadRequest(c, "invalid period_start, expect RFC3339")
			return
		}
		periodStart, _ = service.MonthlyPeriodOf(parsed)
	}

	snapshot, err := h.TeamVolumeService.Recompute(memberID, periodStart)
	if err != nil {
		respondWithMappedError(c, err, "recompute team volume failed")
		return
	}
	response.Success(c, snapshot)
}

// GetLatestTeamVolume 查询成员最近一期团队业绩快照
func (h *Handler) GetLatestTeamVolume(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	var snapshot *models.TeamVolumeSnapshot
	var err error
	if raw := c.Query("period"); raw != "" {
		parsed, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			response.BadRequest(c, "invalid period, expect RFC3339")
			return
		}
		snapshot, err = h.TeamVolumeService.GetSnapshotForPeriod(memberID, parsed)
	} else {
		snapshot, err = h.TeamVolumeService.GetLatestSnapshot(memberID)
	}
	if err != nil {
		respondWithMappedError(c, err, "load team volume snapshot failed")
		return
	}
	if snapshot == nil {
		response.NotFound(c, "no team volume snapshot yet")
		return
	}
	response.Success(c, snapshot)
}

// GetTeamVolumeHistory 查询成员团队业绩快照历史
func (h *Handler) GetTeamVolumeHistory(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	limit := parseIntQuery(c, "limit", 12)

	snapshots, err := h.TeamVolumeService.GetSnapshotHistory(memberID, limit)
	if err != nil {
		respondWithMappedError(c, err, "load team volume history failed")
		return
	}
	response.Success(c, snapshots)
}

type tierQualificationRequest struct {
	RequiredVolume    string `json:"required_volume" binding:"required"`
	RequiredReferrals int    `json:"required_referrals" binding:"required"`
}

// CheckTierQualification 校验成员是否满足晋级条件（业绩与直推数同时满足）
func (h *Handler) CheckTierQualification(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	var req tierQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	requiredVolume, err := decimal.NewFromString(req.RequiredVolume)
	if err != nil {
		response.BadRequest(c, "invalid required_volume")
		return
	}

	qualified, err := h.TeamVolumeService.CheckTierUpgradeQualification(memberID, requiredVolume, req.RequiredReferrals)
	if err != nil {
		respondWithMappedError(c, err, "check tier qualification failed")
		return
	}
	response.Success(c, gin.H{
		"member_id": memberID,
		"qualified": qualified,
	})
}
