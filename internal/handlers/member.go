package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/hive/internal/dto"
	"github.com/yukikurage/hive/internal/services"
)

// MemberHandler serves the staff directory and the leaderboard.
type MemberHandler struct {
	queryService *services.QueryService
}

func NewMemberHandler(queryService *services.QueryService) *MemberHandler {
	return &MemberHandler{
		queryService: queryService,
	}
}

// ListHeads returns every Head and Admin with their counters
func (h *MemberHandler) ListHeads(c *gin.Context) {
	members, err := h.queryService.Staff(c.Request.Context())
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"heads":   dto.ToMemberDTOs(members),
	})
}

// Leaderboard ranks Heads and Admins by resolved queries
func (h *MemberHandler) Leaderboard(c *gin.Context) {
	members, err := h.queryService.Leaderboard(c.Request.Context())
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"leaderboard": dto.ToLeaderboard(members),
	})
}
