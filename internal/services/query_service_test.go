package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/hive/internal/access"
	"github.com/yukikurage/hive/internal/lifecycle"
	"github.com/yukikurage/hive/internal/logger"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/repository"
	"github.com/yukikurage/hive/internal/testutil"
)

type cast struct {
	user, other, head, head2, admin *models.Member
}

func (s *serviceSuite) seed() cast {
	t := s.T()
	return cast{
		user:  testutil.CreateMember(t, s.db, "Ann", "ann@example.com", models.RoleUser),
		other: testutil.CreateMember(t, s.db, "Oz", "oz@example.com", models.RoleUser),
		head:  testutil.CreateMember(t, s.db, "Bo", "bo@example.com", models.RoleHead),
		head2: testutil.CreateMember(t, s.db, "Cy", "cy@example.com", models.RoleHead),
		admin: testutil.CreateMember(t, s.db, "Ada", "ada@example.com", models.RoleAdmin),
	}
}

func (s *serviceSuite) TestLifecycleScenario() {
	c := s.seed()

	q, err := s.queries.Create(s.ctx, s.actor(c.user), CreateQueryInput{Issue: "X"})
	s.Require().NoError(err)
	s.Equal(models.QueryStatusUnassigned, q.Status)
	s.Nil(q.AssignedToID)

	q, err = s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.head.ID)
	s.Require().NoError(err)
	s.Equal(models.QueryStatusAssigned, q.Status)
	s.Equal(c.head.ID, *q.AssignedToID)
	s.Equal(int64(1), testutil.ReloadMember(s.T(), s.db, c.head.ID).QueriesTaken)

	q, err = s.queries.Resolve(s.ctx, s.actor(c.head), q.ID, "fixed")
	s.Require().NoError(err)
	s.Equal(models.QueryStatusResolved, q.Status)
	s.Equal("fixed", q.Reply)

	head := testutil.ReloadMember(s.T(), s.db, c.head.ID)
	s.Equal(int64(1), head.QueriesResolved)
	s.Equal(int64(0), head.QueriesTaken)

	_, err = s.queries.Resolve(s.ctx, s.actor(c.admin), q.ID, "again")
	s.ErrorIs(err, lifecycle.ErrTerminal)
	_, err = s.queries.Dismantle(s.ctx, s.actor(c.admin), q.ID, "")
	s.ErrorIs(err, lifecycle.ErrTerminal)
	_, err = s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.head2.ID)
	s.ErrorIs(err, lifecycle.ErrTerminal)

	stored := testutil.ReloadQuery(s.T(), s.db, q.ID)
	s.Equal(models.QueryStatusResolved, stored.Status)
	s.Equal("fixed", stored.Reply)
	s.Equal(int64(0), testutil.ReloadMember(s.T(), s.db, c.head2.ID).QueriesTaken)

	s.notifier.Close()
	var subjects []string
	for _, m := range s.mailer.Sent() {
		subjects = append(subjects, m.To+": "+m.Subject)
	}
	s.Contains(subjects, "bo@example.com: Query #1 assigned to you")
	s.Contains(subjects, "ann@example.com: Your query #1 was resolved")
}

func (s *serviceSuite) TestReassignAndAdminResolve() {
	c := s.seed()
	q := testutil.CreateQuery(s.T(), s.db, "X", c.user.ID, models.QueryStatusUnassigned, nil)

	_, err := s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.head.ID)
	s.Require().NoError(err)
	_, err = s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.head2.ID)
	s.Require().NoError(err)

	s.Equal(int64(0), testutil.ReloadMember(s.T(), s.db, c.head.ID).QueriesTaken)
	s.Equal(int64(1), testutil.ReloadMember(s.T(), s.db, c.head2.ID).QueriesTaken)

	// The previous assignee can no longer act on it.
	_, err = s.queries.Resolve(s.ctx, s.actor(c.head), q.ID, "mine")
	s.ErrorIs(err, access.ErrNotAssignee)

	_, err = s.queries.Resolve(s.ctx, s.actor(c.admin), q.ID, "")
	s.Require().NoError(err)

	s.Equal(int64(0), testutil.ReloadMember(s.T(), s.db, c.head2.ID).QueriesTaken)
	s.Equal(int64(0), testutil.ReloadMember(s.T(), s.db, c.head2.ID).QueriesResolved)
	s.Equal(int64(1), testutil.ReloadMember(s.T(), s.db, c.admin.ID).QueriesResolved)
	s.Equal("Query resolved", testutil.ReloadQuery(s.T(), s.db, q.ID).Reply)
}

func (s *serviceSuite) TestAdminResolvesUnassigned() {
	c := s.seed()
	q := testutil.CreateQuery(s.T(), s.db, "X", c.user.ID, models.QueryStatusUnassigned, nil)

	_, err := s.queries.Resolve(s.ctx, s.actor(c.admin), q.ID, "done")
	s.Require().NoError(err)

	admin := testutil.ReloadMember(s.T(), s.db, c.admin.ID)
	s.Equal(int64(1), admin.QueriesResolved)
	s.Equal(int64(0), admin.QueriesTaken)
	s.Equal(int64(0), testutil.ReloadMember(s.T(), s.db, c.head.ID).QueriesTaken)
}

func (s *serviceSuite) TestDismantle() {
	c := s.seed()
	q := testutil.CreateQuery(s.T(), s.db, "X", c.user.ID, models.QueryStatusUnassigned, nil)
	_, err := s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.head.ID)
	s.Require().NoError(err)

	got, err := s.queries.Dismantle(s.ctx, s.actor(c.head), q.ID, "  ")
	s.Require().NoError(err)
	s.Equal(models.QueryStatusDismantled, got.Status)
	s.Equal("No reason provided", got.Reply)

	head := testutil.ReloadMember(s.T(), s.db, c.head.ID)
	s.Equal(int64(0), head.QueriesTaken)
	s.Equal(int64(0), head.QueriesResolved)
}

func (s *serviceSuite) TestPermissions() {
	c := s.seed()
	q := testutil.CreateQuery(s.T(), s.db, "X", c.user.ID, models.QueryStatusUnassigned, nil)

	_, err := s.queries.Assign(s.ctx, s.actor(c.head), q.ID, c.head.ID)
	s.ErrorIs(err, access.ErrRoleNotAllowed)

	_, err = s.queries.Resolve(s.ctx, s.actor(c.user), q.ID, "x")
	s.ErrorIs(err, access.ErrRoleNotAllowed)

	_, err = s.queries.Dismantle(s.ctx, s.actor(c.head), q.ID, "x")
	s.ErrorIs(err, access.ErrNotAssignee)

	_, err = s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.user.ID)
	s.ErrorIs(err, lifecycle.ErrInvalidAssignee)

	_, err = s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, 999)
	s.ErrorIs(err, ErrAssigneeNotFound)

	_, err = s.queries.Resolve(s.ctx, s.actor(c.admin), 999, "x")
	s.ErrorIs(err, ErrQueryNotFound)

	s.Equal(models.QueryStatusUnassigned, testutil.ReloadQuery(s.T(), s.db, q.ID).Status)
}

func (s *serviceSuite) TestCreate() {
	c := s.seed()

	_, err := s.queries.Create(s.ctx, s.actor(c.user), CreateQueryInput{Issue: "   "})
	s.ErrorIs(err, lifecycle.ErrIssueRequired)

	_, err = s.queries.Create(s.ctx, s.actor(c.user), CreateQueryInput{Issue: "X", AskedBy: c.other.ID})
	s.ErrorIs(err, ErrCreateForOthers)

	_, err = s.queries.Create(s.ctx, s.actor(c.admin), CreateQueryInput{Issue: "X", AskedBy: 999})
	s.ErrorIs(err, ErrAskerNotFound)

	q, err := s.queries.Create(s.ctx, s.actor(c.admin), CreateQueryInput{Issue: "on behalf", AskedBy: c.other.ID})
	s.Require().NoError(err)
	s.Equal(c.other.ID, q.AskedByID)
	s.Equal("Oz", q.AskedBy.Name)
}

func (s *serviceSuite) TestVisibility() {
	c := s.seed()
	own := testutil.CreateQuery(s.T(), s.db, "mine", c.user.ID, models.QueryStatusUnassigned, nil)
	foreign := testutil.CreateQuery(s.T(), s.db, "theirs", c.other.ID, models.QueryStatusAssigned, &c.head.ID)

	_, err := s.queries.Get(s.ctx, s.actor(c.user), own.ID)
	s.NoError(err)
	_, err = s.queries.Get(s.ctx, s.actor(c.user), foreign.ID)
	s.ErrorIs(err, ErrQueryNotFound)

	got, err := s.queries.Get(s.ctx, s.actor(c.head), foreign.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.AssignedTo)
	s.Equal("Bo", got.AssignedTo.Name)
	_, err = s.queries.Get(s.ctx, s.actor(c.head2), foreign.ID)
	s.ErrorIs(err, ErrQueryNotFound)

	_, err = s.queries.Get(s.ctx, s.actor(c.admin), own.ID)
	s.NoError(err)

	list, total, err := s.queries.List(s.ctx, s.actor(c.head), ListQueriesInput{})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("theirs", list[0].Issue)

	_, total, err = s.queries.List(s.ctx, s.actor(c.admin), ListQueriesInput{})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
}

func (s *serviceSuite) TestStatsForUser() {
	c := s.seed()
	testutil.CreateQuery(s.T(), s.db, "a", c.user.ID, models.QueryStatusResolved, &c.head.ID)
	testutil.CreateQuery(s.T(), s.db, "b", c.user.ID, models.QueryStatusUnassigned, nil)
	testutil.CreateQuery(s.T(), s.db, "c", c.user.ID, models.QueryStatusUnassigned, nil)
	testutil.CreateQuery(s.T(), s.db, "d", c.other.ID, models.QueryStatusUnassigned, nil)

	stats, err := s.queries.Stats(s.ctx, s.actor(c.user))
	s.Require().NoError(err)
	s.Equal(repository.QueryStats{Total: 3, Resolved: 1, Unassigned: 2}, stats)
	s.Equal(int64(2), stats.Pending())
}

func (s *serviceSuite) TestStaleTransitionIsConflict() {
	c := s.seed()
	q := testutil.CreateQuery(s.T(), s.db, "X", c.user.ID, models.QueryStatusUnassigned, nil)

	// Plan against the unassigned snapshot, then let another request win.
	plan, err := lifecycle.Assign(*q, *c.head2, s.actor(c.admin))
	s.Require().NoError(err)
	_, err = s.queries.Assign(s.ctx, s.actor(c.admin), q.ID, c.head.ID)
	s.Require().NoError(err)

	err = s.queries.apply(s.ctx, q, plan)
	s.ErrorIs(err, repository.ErrStaleTransition)
	s.Equal(int64(0), testutil.ReloadMember(s.T(), s.db, c.head2.ID).QueriesTaken)
}

func (s *serviceSuite) TestSuggestReply() {
	c := s.seed()
	q := testutil.CreateQuery(s.T(), s.db, "printer jammed", c.user.ID, models.QueryStatusAssigned, &c.head.ID)

	_, err := s.queries.SuggestReply(s.ctx, s.actor(c.head), q.ID)
	s.ErrorIs(err, ErrAIServiceNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.True(strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Open the rear tray. "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	svc := NewQueryService(
		repository.NewQueryRepository(s.db),
		repository.NewMemberRepository(s.db),
		s.notifier,
		NewAIServiceWithConfig(cfg),
		logger.Discard(),
	)

	reply, err := svc.SuggestReply(context.Background(), s.actor(c.head), q.ID)
	s.Require().NoError(err)
	s.Equal("Open the rear tray.", reply)

	_, err = svc.SuggestReply(context.Background(), s.actor(c.head2), q.ID)
	s.ErrorIs(err, access.ErrNotAssignee)

	s.Equal("", testutil.ReloadQuery(s.T(), s.db, q.ID).Reply)
}
