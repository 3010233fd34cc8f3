package dto

import (
	"time"

	"github.com/yukikurage/hive/internal/models"
)

// MemberSummaryDTO is the short form of a member embedded in queries
type MemberSummaryDTO struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MemberDTO represents a member in API responses
type MemberDTO struct {
	ID              uint64      `json:"id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Role            models.Role `json:"role"`
	QueriesTaken    int64       `json:"queries_taken"`
	QueriesResolved int64       `json:"queries_resolved"`
	CreatedAt       time.Time   `json:"created_at"`
}

// LeaderboardEntryDTO is one ranked row of the leaderboard
type LeaderboardEntryDTO struct {
	Rank            int         `json:"rank"`
	ID              uint64      `json:"id"`
	Name            string      `json:"name"`
	Role            models.Role `json:"role"`
	QueriesResolved int64       `json:"queries_resolved"`
}

// ToMemberSummaryDTO converts a Member model to MemberSummaryDTO
func ToMemberSummaryDTO(member models.Member) MemberSummaryDTO {
	return MemberSummaryDTO{
		ID:    member.ID,
		Name:  member.Name,
		Email: member.Email,
	}
}

// ToMemberDTO converts a Member model to MemberDTO
func ToMemberDTO(member models.Member) MemberDTO {
	return MemberDTO{
		ID:              member.ID,
		Name:            member.Name,
		Email:           member.Email,
		Role:            member.Role,
		QueriesTaken:    member.QueriesTaken,
		QueriesResolved: member.QueriesResolved,
		CreatedAt:       member.CreatedAt,
	}
}

// ToMemberDTOs converts a slice of members
func ToMemberDTOs(members []models.Member) []MemberDTO {
	out := make([]MemberDTO, len(members))
	for i, m := range members {
		out[i] = ToMemberDTO(m)
	}
	return out
}

// ToLeaderboard ranks members in the order given, starting at 1
func ToLeaderboard(members []models.Member) []LeaderboardEntryDTO {
	out := make([]LeaderboardEntryDTO, len(members))
	for i, m := range members {
		out[i] = LeaderboardEntryDTO{
			Rank:            i + 1,
			ID:              m.ID,
			Name:            m.Name,
			Role:            m.Role,
			QueriesResolved: m.QueriesResolved,
		}
	}
	return out
}
