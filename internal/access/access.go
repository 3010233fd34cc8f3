// Package access decides which member roles may perform which query
// operations, independent of HTTP.
package access

import (
	"errors"
	"slices"

	"github.com/yukikurage/hive/internal/models"
)

type Operation string

const (
	OpCreateQuery  Operation = "create_query"
	OpViewQueries  Operation = "view_queries"
	OpAssign       Operation = "assign"
	OpResolve      Operation = "resolve"
	OpDismantle    Operation = "dismantle"
	OpSuggestReply Operation = "suggest_reply"
)

var (
	ErrRoleNotAllowed = errors.New("role is not allowed to perform this operation")
	ErrNotAssignee    = errors.New("heads may only act on queries assigned to them")
)

var allowed = map[Operation][]models.Role{
	OpCreateQuery:  {models.RoleUser, models.RoleHead, models.RoleAdmin},
	OpViewQueries:  {models.RoleUser, models.RoleHead, models.RoleAdmin},
	OpAssign:       {models.RoleAdmin},
	OpResolve:      {models.RoleHead, models.RoleAdmin},
	OpDismantle:    {models.RoleHead, models.RoleAdmin},
	OpSuggestReply: {models.RoleHead, models.RoleAdmin},
}

// ownAssignmentOnly lists operations a Head may only perform on their own assignment.
var ownAssignmentOnly = map[Operation]bool{
	OpResolve:      true,
	OpDismantle:    true,
	OpSuggestReply: true,
}

// AllowedRoles returns the roles permitted to attempt op.
func AllowedRoles(op Operation) []models.Role {
	return slices.Clone(allowed[op])
}

// RoleAllowed reports whether role appears in op's allow-list.
func RoleAllowed(role models.Role, op Operation) bool {
	return slices.Contains(allowed[op], role)
}

// Check decides whether role may perform op. ownsAssignment tells whether the
// acting member is the query's current assignee; it only matters for Heads.
func Check(role models.Role, op Operation, ownsAssignment bool) error {
	if !RoleAllowed(role, op) {
		return ErrRoleNotAllowed
	}
	if role == models.RoleHead && ownAssignmentOnly[op] && !ownsAssignment {
		return ErrNotAssignee
	}
	return nil
}
