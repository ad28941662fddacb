package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/damilarekoiki/project-management/internal/pkg/apperr"
)

// respondError 按错误分类映射 HTTP 状态码。
//
// 422 校验失败（带字段明细，唯一约束冲突也归入此类）、403 权限不足
// （只给笼统拒绝）、404 不存在或不在可见范围内，其余按 500 处理并记日志。
func (s *Server) respondError(c *gin.Context, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "validation failed",
			"errors":  ve.Fields,
		})
		return
	}
	if ce, ok := apperr.AsConflict(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "validation failed",
			"errors":  map[string]string{ce.Field: "has already been taken"},
		})
		return
	}
	if apperr.IsForbidden(err) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if apperr.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	s.logger.Error("request failed",
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// parseUintParam 解析路径参数。非数字 id 不可能命中任何记录，按 404 处理。
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return uint(id), true
}
