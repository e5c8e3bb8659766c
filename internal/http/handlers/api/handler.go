package api

import (
	"strconv"

	"github.com/fenxiao-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 分销网络 API 处理器
type Handler struct {
	*provider.Container
}

// New 创建 API 处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// parseIDParam 解析路径中的数字 ID
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseIntQuery 解析查询参数中的整数，缺省或非法时返回 fallback
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
