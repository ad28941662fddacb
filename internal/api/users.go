package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/damilarekoiki/project-management/internal/api/middleware"
)

// handleMe 返回当前认证用户。
func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// handleSearchUsers 按用户名搜索用户（指派任务时的补全接口）。
//
// 空查询直接返回空列表，最多返回 4 条。
func (s *Server) handleSearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, []any{})
		return
	}

	users, err := s.users.SearchByName(c.Request.Context(), query)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
