package dto

import (
	"time"

	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/repository"
	"github.com/yukikurage/hive/internal/utils"
)

// QueryDTO represents a query in API responses
type QueryDTO struct {
	ID           uint64             `json:"id"`
	Issue        string             `json:"issue"`
	Status       models.QueryStatus `json:"status"`
	Reply        string             `json:"reply"`
	AskedByID    uint64             `json:"asked_by_id"`
	AssignedToID *uint64            `json:"assigned_to_id"`
	AskedBy      *MemberSummaryDTO  `json:"asked_by,omitempty"`
	AssignedTo   *MemberSummaryDTO  `json:"assigned_to,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// QueryListResponse represents a paginated list of queries
type QueryListResponse struct {
	Success    bool                     `json:"success"`
	Queries    []QueryDTO               `json:"queries"`
	Pagination utils.PaginationResponse `json:"pagination"`
	TotalPages int                      `json:"total_pages"`
}

// QueryStatsDTO is the per-status breakdown of the caller's queries
type QueryStatsDTO struct {
	Total      int64 `json:"total"`
	Resolved   int64 `json:"resolved"`
	Assigned   int64 `json:"assigned"`
	Unassigned int64 `json:"unassigned"`
	Dismantled int64 `json:"dismantled"`
	Pending    int64 `json:"pending"`
}

// ToQueryDTO converts a Query model to QueryDTO
func ToQueryDTO(query models.Query) QueryDTO {
	dto := QueryDTO{
		ID:           query.ID,
		Issue:        query.Issue,
		Status:       query.Status,
		Reply:        query.Reply,
		AskedByID:    query.AskedByID,
		AssignedToID: query.AssignedToID,
		CreatedAt:    query.CreatedAt,
		UpdatedAt:    query.UpdatedAt,
	}

	// Include asker if preloaded
	if query.AskedBy.ID != 0 {
		asker := ToMemberSummaryDTO(query.AskedBy)
		dto.AskedBy = &asker
	}

	// Include assignee if preloaded
	if query.AssignedTo != nil && query.AssignedTo.ID != 0 {
		assignee := ToMemberSummaryDTO(*query.AssignedTo)
		dto.AssignedTo = &assignee
	}

	return dto
}

// ToQueryListResponse converts a slice of queries to QueryListResponse
func ToQueryListResponse(queries []models.Query, params utils.PaginationParams, totalCount int64) QueryListResponse {
	items := make([]QueryDTO, len(queries))
	for i, query := range queries {
		items[i] = ToQueryDTO(query)
	}

	totalPages := int(totalCount) / params.Limit
	if int(totalCount)%params.Limit > 0 {
		totalPages++
	}

	return QueryListResponse{
		Success: true,
		Queries: items,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: totalCount,
		},
		TotalPages: totalPages,
	}
}

// ToQueryStatsDTO converts repository stats to QueryStatsDTO
func ToQueryStatsDTO(stats repository.QueryStats) QueryStatsDTO {
	return QueryStatsDTO{
		Total:      stats.Total,
		Resolved:   stats.Resolved,
		Assigned:   stats.Assigned,
		Unassigned: stats.Unassigned,
		Dismantled: stats.Dismantled,
		Pending:    stats.Pending(),
	}
}
