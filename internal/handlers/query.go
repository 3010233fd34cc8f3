package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/hive/internal/access"
	"github.com/yukikurage/hive/internal/dto"
	apierrors "github.com/yukikurage/hive/internal/errors"
	"github.com/yukikurage/hive/internal/lifecycle"
	"github.com/yukikurage/hive/internal/middleware"
	"github.com/yukikurage/hive/internal/repository"
	"github.com/yukikurage/hive/internal/services"
	"github.com/yukikurage/hive/internal/utils"
)

type QueryHandler struct {
	queryService *services.QueryService
}

func NewQueryHandler(queryService *services.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// AddQuery files a new query for the caller, or for askedBy when an Admin
// files it on someone's behalf.
func (h *QueryHandler) AddQuery(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type AddQueryRequest struct {
		Issue   string `json:"issue" binding:"required"`
		AskedBy uint64 `json:"askedBy"`
	}

	var req AddQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	query, err := h.queryService.Create(c.Request.Context(), actor, services.CreateQueryInput{
		Issue:   req.Issue,
		AskedBy: req.AskedBy,
	})
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"query":   dto.ToQueryDTO(*query),
	})
}

// ListQueries returns the caller's queries, newest first
func (h *QueryHandler) ListQueries(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)

	queries, total, err := h.queryService.List(c.Request.Context(), actor, services.ListQueriesInput{
		Page:     params.Page,
		PageSize: params.Limit,
	})
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToQueryListResponse(queries, params, total))
}

// GetQuery returns a single query the caller may see
func (h *QueryHandler) GetQuery(c *gin.Context) {
	actor, queryID, ok := actorAndQueryID(c)
	if !ok {
		return
	}

	query, err := h.queryService.Get(c.Request.Context(), actor, queryID)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   dto.ToQueryDTO(*query),
	})
}

// QueryStats counts the caller's queries per status
func (h *QueryHandler) QueryStats(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	stats, err := h.queryService.Stats(c.Request.Context(), actor)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   dto.ToQueryStatsDTO(stats),
	})
}

// Assign hands a query to a Head or Admin
func (h *QueryHandler) Assign(c *gin.Context) {
	actor, queryID, ok := actorAndQueryID(c)
	if !ok {
		return
	}

	type AssignRequest struct {
		HeadID uint64 `json:"headId" binding:"required"`
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	query, err := h.queryService.Assign(c.Request.Context(), actor, queryID, req.HeadID)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   dto.ToQueryDTO(*query),
	})
}

// Resolve closes a query with an optional reply
func (h *QueryHandler) Resolve(c *gin.Context) {
	actor, queryID, ok := actorAndQueryID(c)
	if !ok {
		return
	}

	type ResolveRequest struct {
		Reply string `json:"reply"`
	}

	var req ResolveRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	query, err := h.queryService.Resolve(c.Request.Context(), actor, queryID, req.Reply)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   dto.ToQueryDTO(*query),
	})
}

// Dismantle closes a query with an optional reason
func (h *QueryHandler) Dismantle(c *gin.Context) {
	actor, queryID, ok := actorAndQueryID(c)
	if !ok {
		return
	}

	type DismantleRequest struct {
		Reason string `json:"reason"`
	}

	var req DismantleRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	query, err := h.queryService.Dismantle(c.Request.Context(), actor, queryID, req.Reason)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   dto.ToQueryDTO(*query),
	})
}

// SuggestReply drafts a reply with the AI service
func (h *QueryHandler) SuggestReply(c *gin.Context) {
	actor, queryID, ok := actorAndQueryID(c)
	if !ok {
		return
	}

	reply, err := h.queryService.SuggestReply(c.Request.Context(), actor, queryID)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"suggestion": reply,
	})
}

func actorAndQueryID(c *gin.Context) (lifecycle.Actor, uint64, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return lifecycle.Actor{}, 0, false
	}

	queryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid query ID")
		return lifecycle.Actor{}, 0, false
	}

	return actor, queryID, true
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return false
	}
	return true
}

func respondQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrRoleNotAllowed),
		errors.Is(err, access.ErrNotAssignee),
		errors.Is(err, services.ErrCreateForOthers):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrQueryNotFound),
		errors.Is(err, services.ErrAssigneeNotFound),
		errors.Is(err, services.ErrAskerNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, lifecycle.ErrTerminal):
		apierrors.InvalidOperation(c, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidAssignee),
		errors.Is(err, lifecycle.ErrIssueRequired):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrStaleTransition):
		apierrors.Conflict(c, "Query was modified by another request, reload and try again")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, err.Error())
	default:
		apierrors.InternalError(c, err)
	}
}
