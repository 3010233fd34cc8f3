// Package lifecycle plans query status transitions and the member counter
// changes that go with them. Planning is pure; persistence applies the plan
// atomically (see repository.QueryRepository.ApplyTransition).
package lifecycle

import (
	"errors"
	"strings"

	"github.com/yukikurage/hive/internal/access"
	"github.com/yukikurage/hive/internal/constants"
	"github.com/yukikurage/hive/internal/models"
)

var (
	ErrTerminal        = errors.New("query is already resolved or dismantled")
	ErrInvalidAssignee = errors.New("queries can only be assigned to heads or admins")
	ErrIssueRequired   = errors.New("issue is required")
)

// Actor is the authenticated member performing an operation.
type Actor struct {
	MemberID uint64
	Role     models.Role
}

// CounterDelta is a change to one member's counters.
type CounterDelta struct {
	MemberID uint64
	Taken    int64
	Resolved int64
}

// Transition describes one query state change. FromStatus and FromAssignee
// are the values the plan was computed against; the store must refuse to
// apply the transition if the row no longer matches them.
type Transition struct {
	QueryID      uint64
	FromStatus   models.QueryStatus
	FromAssignee *uint64
	ToStatus     models.QueryStatus
	ToAssignee   *uint64
	// Reply is nil when the reply text is left unchanged.
	Reply  *string
	Deltas []CounterDelta
}

// NewQuery builds an unassigned query for askedBy.
func NewQuery(issue string, askedBy uint64) (models.Query, error) {
	issue = strings.TrimSpace(issue)
	if issue == "" {
		return models.Query{}, ErrIssueRequired
	}
	return models.Query{
		Issue:     issue,
		AskedByID: askedBy,
		Status:    models.QueryStatusUnassigned,
	}, nil
}

// Assign plans handing q to target. Reassigning releases the previous assignee.
func Assign(q models.Query, target models.Member, actor Actor) (Transition, error) {
	if err := access.Check(actor.Role, access.OpAssign, false); err != nil {
		return Transition{}, err
	}
	if q.Status.Terminal() {
		return Transition{}, ErrTerminal
	}
	if !target.Role.CanTakeQueries() {
		return Transition{}, ErrInvalidAssignee
	}

	t := newTransition(q)
	t.ToStatus = models.QueryStatusAssigned
	t.ToAssignee = ptr(target.ID)

	var deltas []CounterDelta
	if q.AssignedToID != nil {
		deltas = append(deltas, CounterDelta{MemberID: *q.AssignedToID, Taken: -1})
	}
	deltas = append(deltas, CounterDelta{MemberID: target.ID, Taken: 1})
	t.Deltas = mergeDeltas(deltas)

	return t, nil
}

// Resolve plans closing q with a reply. The resolver is always credited; an
// Admin resolving someone else's assignment takes the credit from them.
func Resolve(q models.Query, reply string, actor Actor) (Transition, error) {
	if err := checkClose(q, actor, access.OpResolve); err != nil {
		return Transition{}, err
	}

	t := newTransition(q)
	t.ToStatus = models.QueryStatusResolved
	t.Reply = ptr(textOrDefault(reply, constants.DefaultResolveReply))

	var deltas []CounterDelta
	if q.AssignedToID != nil {
		deltas = append(deltas, CounterDelta{MemberID: *q.AssignedToID, Taken: -1})
	}
	deltas = append(deltas, CounterDelta{MemberID: actor.MemberID, Resolved: 1})
	t.Deltas = mergeDeltas(deltas)

	return t, nil
}

// Dismantle plans closing q without a resolution credit.
func Dismantle(q models.Query, reason string, actor Actor) (Transition, error) {
	if err := checkClose(q, actor, access.OpDismantle); err != nil {
		return Transition{}, err
	}

	t := newTransition(q)
	t.ToStatus = models.QueryStatusDismantled
	t.Reply = ptr(textOrDefault(reason, constants.DefaultDismantleReply))

	if q.AssignedToID != nil {
		t.Deltas = []CounterDelta{{MemberID: *q.AssignedToID, Taken: -1}}
	}

	return t, nil
}

// CanAct reports whether actor may perform op on q, ignoring its status.
func CanAct(q models.Query, actor Actor, op access.Operation) error {
	return access.Check(actor.Role, op, IsAssignee(q, actor.MemberID))
}

// IsAssignee reports whether memberID currently holds q.
func IsAssignee(q models.Query, memberID uint64) bool {
	return q.AssignedToID != nil && *q.AssignedToID == memberID
}

// ApplyTo copies the planned end state onto q.
func (t Transition) ApplyTo(q *models.Query) {
	q.Status = t.ToStatus
	q.AssignedToID = t.ToAssignee
	if t.Reply != nil {
		q.Reply = *t.Reply
	}
}

func checkClose(q models.Query, actor Actor, op access.Operation) error {
	if err := CanAct(q, actor, op); err != nil {
		return err
	}
	if q.Status.Terminal() {
		return ErrTerminal
	}
	return nil
}

func newTransition(q models.Query) Transition {
	return Transition{
		QueryID:      q.ID,
		FromStatus:   q.Status,
		FromAssignee: q.AssignedToID,
		ToAssignee:   q.AssignedToID,
	}
}

// mergeDeltas sums deltas per member, keeps first-seen order and drops
// members whose net change is zero.
func mergeDeltas(deltas []CounterDelta) []CounterDelta {
	index := make(map[uint64]int, len(deltas))
	merged := make([]CounterDelta, 0, len(deltas))
	for _, d := range deltas {
		if i, ok := index[d.MemberID]; ok {
			merged[i].Taken += d.Taken
			merged[i].Resolved += d.Resolved
			continue
		}
		index[d.MemberID] = len(merged)
		merged = append(merged, d)
	}

	out := merged[:0]
	for _, d := range merged {
		if d.Taken != 0 || d.Resolved != 0 {
			out = append(out, d)
		}
	}
	return out
}

func textOrDefault(text, def string) string {
	if strings.TrimSpace(text) == "" {
		return def
	}
	return text
}

func ptr[T any](v T) *T {
	return &v
}
