package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/engine/fault"
	"hireline/internal/gateway"
	"hireline/internal/migrate"
)

type testEnv struct {
	Engine  engine.Engine
	Gateway *gateway.Dev
	Ctx     context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("hireline-test")
	gw := &gateway.Dev{}
	eng := engine.New(conn, cfg, gw)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, actor := range []string{"client-1", "free-1", "free-2"} {
		if _, err := eng.RegisterActor(ctx, actor, ""); err != nil {
			t.Fatalf("register %s: %v", actor, err)
		}
	}
	return testEnv{Engine: eng, Gateway: gw, Ctx: ctx}
}

func postEngagement(t *testing.T, env testEnv, min, max int64) domain.Engagement {
	t.Helper()
	eng, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{
		Title:     "Build landing page",
		BudgetMin: min,
		BudgetMax: max,
		Category:  "development",
	})
	if err != nil {
		t.Fatalf("create engagement: %v", err)
	}
	return eng
}

// fundedOrder walks an engagement to a funded, in_progress order.
func fundedOrder(t *testing.T, env testEnv) domain.Order {
	t.Helper()
	eng := postEngagement(t, env, 400, 600)
	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 500, 7, "I can do this")
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	_, o, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1")
	if err != nil {
		t.Fatalf("accept proposal: %v", err)
	}
	if o, err = env.Engine.AcceptOrder(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatalf("accept order: %v", err)
	}
	if o, err = env.Engine.FundOrder(env.Ctx, o.ID, "client-1"); err != nil {
		t.Fatalf("fund order: %v", err)
	}
	if o, err = env.Engine.StartOrder(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatalf("start order: %v", err)
	}
	return o
}

func TestHappyPath(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 400, 600)
	if eng.Status != domain.EngagementOpen {
		t.Fatalf("expected open, got %s", eng.Status)
	}

	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 500, 7, "pitch")
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	accepted, o, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1")
	if err != nil {
		t.Fatalf("accept proposal: %v", err)
	}
	if accepted.Status != domain.ProposalAccepted {
		t.Fatalf("expected accepted proposal, got %s", accepted.Status)
	}
	if o.Price != 500 {
		t.Fatalf("price snapshot: want 500, got %d", o.Price)
	}
	if o.Status != domain.OrderPending {
		t.Fatalf("expected pending order, got %s", o.Status)
	}
	got, err := env.Engine.GetEngagement(env.Ctx, eng.ID)
	if err != nil || got.Status != domain.EngagementAssigned {
		t.Fatalf("expected assigned engagement, got %s (%v)", got.Status, err)
	}

	if o, err = env.Engine.AcceptOrder(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatalf("accept order: %v", err)
	}
	if o, err = env.Engine.FundOrder(env.Ctx, o.ID, "client-1"); err != nil {
		t.Fatalf("fund order: %v", err)
	}
	if !o.IsPaid {
		t.Fatalf("expected paid order")
	}
	if o, err = env.Engine.StartOrder(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatalf("start order: %v", err)
	}
	if o, err = env.Engine.MarkDelivered(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if _, err = env.Engine.RequestRelease(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatalf("request release: %v", err)
	}
	if o, err = env.Engine.ReleaseOrder(env.Ctx, o.ID, "client-1"); err != nil {
		t.Fatalf("release order: %v", err)
	}
	if !o.EscrowReleased || o.Status != domain.OrderCompleted {
		t.Fatalf("expected released+completed, got released=%v status=%s", o.EscrowReleased, o.Status)
	}

	if _, err := env.Engine.SubmitReview(env.Ctx, o.ID, "client-1", 5, "great work"); err != nil {
		t.Fatalf("submit review: %v", err)
	}
	freelancer, err := env.Engine.GetActor(env.Ctx, "free-1")
	if err != nil {
		t.Fatalf("get actor: %v", err)
	}
	if freelancer.RatingCount != 1 || freelancer.RatingAvg != 5 {
		t.Fatalf("expected rating 5 (1 review), got avg=%v count=%d", freelancer.RatingAvg, freelancer.RatingCount)
	}
}

func TestCreateEngagementValidation(t *testing.T) {
	env := newTestEnv(t)
	var ve fault.ValidationError
	if _, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{BudgetMax: 100}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for missing title, got %v", err)
	}
	if _, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{Title: "x"}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for missing budget, got %v", err)
	}
	if _, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{Title: "x", BudgetMin: 900, BudgetMax: 100}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for inverted budget, got %v", err)
	}
}

func TestProposalRules(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 100)

	var ae fault.AuthorizationError
	if _, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "client-1", 100, 1, ""); !errors.As(err, &ae) {
		t.Fatalf("owner bidding should be rejected, got %v", err)
	}

	if _, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 100, 1, ""); err != nil {
		t.Fatalf("first proposal: %v", err)
	}
	var dup fault.AlreadyExistsError
	if _, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 120, 2, ""); !errors.As(err, &dup) {
		t.Fatalf("duplicate proposal should conflict, got %v", err)
	}

	// close the engagement, bidding stops
	if _, err := env.Engine.SetEngagementStatus(env.Ctx, eng.ID, "client-1", domain.EngagementCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	var sc fault.StateConflictError
	if _, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-2", 100, 1, ""); !errors.As(err, &sc) {
		t.Fatalf("bidding on cancelled engagement should conflict, got %v", err)
	}
}

func TestAcceptOnlyFirstProposal(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 300)
	p1, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 150, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-2", 200, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.Engine.AcceptProposal(env.Ctx, p1.ID, "client-1"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	var sc fault.StateConflictError
	if _, _, err := env.Engine.AcceptProposal(env.Ctx, p2.ID, "client-1"); !errors.As(err, &sc) {
		t.Fatalf("second accept should conflict, got %v", err)
	}
	// sibling stays pending by default
	got, err := env.Engine.ListProposals(env.Ctx, eng.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range got {
		if p.ID == p2.ID && p.Status != domain.ProposalPending {
			t.Fatalf("sibling proposal should remain pending, got %s", p.Status)
		}
	}
}

func TestAcceptRace(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 300)
	p1, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 150, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-2", 200, 3, "")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{p1.ID, p2.ID} {
		wg.Add(1)
		go func(i int, proposalID string) {
			defer wg.Done()
			_, _, errs[i] = env.Engine.AcceptProposal(env.Ctx, proposalID, "client-1")
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var sc fault.StateConflictError
		if !errors.As(err, &sc) {
			t.Fatalf("loser should get state conflict, got %v", err)
		}
		lost++
	}
	if won != 1 || lost != 1 {
		t.Fatalf("expected exactly one winner, got won=%d lost=%d", won, lost)
	}
	orders, err := env.Engine.ListOrders(env.Ctx, "client-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(orders))
	}
}

func TestRejectProposalIdempotentOnTerminal(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 100)
	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 100, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	first, err := env.Engine.RejectProposal(env.Ctx, p.ID, "client-1")
	if err != nil || first.Status != domain.ProposalRejected {
		t.Fatalf("reject: %v status=%s", err, first.Status)
	}
	second, err := env.Engine.RejectProposal(env.Ctx, p.ID, "client-1")
	if err != nil || second.Status != domain.ProposalRejected {
		t.Fatalf("re-reject should return terminal state unchanged: %v", err)
	}
}

func TestFundIdempotency(t *testing.T) {
	env := newTestEnv(t)
	o := fundedOrder(t, env)
	if env.Gateway.Captures() != 1 {
		t.Fatalf("expected one capture, got %d", env.Gateway.Captures())
	}
	var sc fault.StateConflictError
	if _, err := env.Engine.FundOrder(env.Ctx, o.ID, "client-1"); !errors.As(err, &sc) {
		t.Fatalf("second fund should conflict, got %v", err)
	}
	if env.Gateway.Captures() != 1 {
		t.Fatalf("gateway must not be invoked twice, got %d captures", env.Gateway.Captures())
	}
}

func TestReleaseIdempotency(t *testing.T) {
	env := newTestEnv(t)
	o := fundedOrder(t, env)
	var err error
	if o, err = env.Engine.MarkDelivered(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatal(err)
	}
	if o, err = env.Engine.ReleaseOrder(env.Ctx, o.ID, "client-1"); err != nil {
		t.Fatalf("first release: %v", err)
	}
	var sc fault.StateConflictError
	if _, err := env.Engine.ReleaseOrder(env.Ctx, o.ID, "client-1"); !errors.As(err, &sc) {
		t.Fatalf("second release should conflict, got %v", err)
	}
	if env.Gateway.Releases() != 1 {
		t.Fatalf("expected one gateway release, got %d", env.Gateway.Releases())
	}
	got, err := env.Engine.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.EscrowReleased || !got.IsPaid || got.Status != domain.OrderCompleted {
		t.Fatalf("ledger changed by failed retry: %+v", got)
	}
}

func TestReleaseRequiresFundedDelivery(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 400, 600)
	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 500, 7, "")
	if err != nil {
		t.Fatal(err)
	}
	_, o, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1")
	if err != nil {
		t.Fatal(err)
	}
	var sc fault.StateConflictError
	if _, err := env.Engine.ReleaseOrder(env.Ctx, o.ID, "client-1"); !errors.As(err, &sc) {
		t.Fatalf("release before delivery should conflict, got %v", err)
	}
	var ae fault.AuthorizationError
	if _, err := env.Engine.ReleaseOrder(env.Ctx, o.ID, "free-1"); !errors.As(err, &ae) {
		t.Fatalf("freelancer releasing should be unauthorized, got %v", err)
	}
}

func TestDeliveredOnlyFromInProgress(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 100)
	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 100, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	_, o, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1")
	if err != nil {
		t.Fatal(err)
	}
	var sc fault.StateConflictError
	if _, err := env.Engine.MarkDelivered(env.Ctx, o.ID, "free-1"); !errors.As(err, &sc) {
		t.Fatalf("deliver from pending should conflict, got %v", err)
	}
	if _, err := env.Engine.StartOrder(env.Ctx, o.ID, "free-1"); !errors.As(err, &sc) {
		t.Fatalf("start from pending should conflict, got %v", err)
	}
	if _, err := env.Engine.AcceptOrder(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatal(err)
	}
	// unfunded start is blocked
	if _, err := env.Engine.StartOrder(env.Ctx, o.ID, "free-1"); !errors.As(err, &sc) {
		t.Fatalf("start before funding should conflict, got %v", err)
	}
}

func TestReviewGate(t *testing.T) {
	env := newTestEnv(t)
	o := fundedOrder(t, env)
	var err error
	var sc fault.StateConflictError
	if _, err := env.Engine.SubmitReview(env.Ctx, o.ID, "client-1", 4, ""); !errors.As(err, &sc) {
		t.Fatalf("review before completion should conflict, got %v", err)
	}
	if o, err = env.Engine.MarkDelivered(env.Ctx, o.ID, "free-1"); err != nil {
		t.Fatal(err)
	}
	if o, err = env.Engine.ReleaseOrder(env.Ctx, o.ID, "client-1"); err != nil {
		t.Fatal(err)
	}

	var ae fault.AuthorizationError
	if _, err := env.Engine.SubmitReview(env.Ctx, o.ID, "free-1", 5, ""); !errors.As(err, &ae) {
		t.Fatalf("freelancer reviewing should be unauthorized, got %v", err)
	}
	var ve fault.ValidationError
	if _, err := env.Engine.SubmitReview(env.Ctx, o.ID, "client-1", 6, ""); !errors.As(err, &ve) {
		t.Fatalf("rating 6 should be invalid, got %v", err)
	}

	if _, err := env.Engine.SubmitReview(env.Ctx, o.ID, "client-1", 4, "solid"); err != nil {
		t.Fatalf("submit review: %v", err)
	}
	before, err := env.Engine.GetActor(env.Ctx, "free-1")
	if err != nil {
		t.Fatal(err)
	}
	var dup fault.AlreadyExistsError
	if _, err := env.Engine.SubmitReview(env.Ctx, o.ID, "client-1", 1, "changed my mind"); !errors.As(err, &dup) {
		t.Fatalf("second review should already exist, got %v", err)
	}
	after, err := env.Engine.GetActor(env.Ctx, "free-1")
	if err != nil {
		t.Fatal(err)
	}
	if before.RatingAvg != after.RatingAvg || before.RatingCount != after.RatingCount {
		t.Fatalf("aggregate changed by rejected review: before=%+v after=%+v", before, after)
	}
}

func TestReopenRules(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 100)
	if _, err := env.Engine.SetEngagementStatus(env.Ctx, eng.ID, "client-1", domain.EngagementCancelled); err != nil {
		t.Fatal(err)
	}

	var ae fault.AuthorizationError
	if _, err := env.Engine.SetEngagementStatus(env.Ctx, eng.ID, "free-1", domain.EngagementOpen); !errors.As(err, &ae) {
		t.Fatalf("non-owner reopen should be unauthorized, got %v", err)
	}
	var pe fault.ProfileIncompleteError
	if _, err := env.Engine.SetEngagementStatus(env.Ctx, eng.ID, "client-1", domain.EngagementOpen); !errors.As(err, &pe) {
		t.Fatalf("reopen without published profile should fail, got %v", err)
	}
	if _, err := env.Engine.PublishProfile(env.Ctx, "client-1"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.SetEngagementStatus(env.Ctx, eng.ID, "client-1", domain.EngagementOpen)
	if err != nil || got.Status != domain.EngagementOpen {
		t.Fatalf("reopen after publish: %v status=%s", err, got.Status)
	}

	// with an active order, reopen is blocked
	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 100, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1"); err != nil {
		t.Fatal(err)
	}
	var sc fault.StateConflictError
	if _, err := env.Engine.SetEngagementStatus(env.Ctx, eng.ID, "client-1", domain.EngagementOpen); !errors.As(err, &sc) {
		t.Fatalf("reopen with active order should conflict, got %v", err)
	}
}

func TestEngagementCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Limits.EngagementCooldownHours = 24
	if _, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{Title: "a", BudgetMax: 10}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	var rl fault.RateLimitedError
	if _, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{Title: "b", BudgetMax: 10}); !errors.As(err, &rl) {
		t.Fatalf("second create within cooldown should be rate limited, got %v", err)
	}
	// another actor is unaffected
	if _, err := env.Engine.CreateEngagement(env.Ctx, "free-2", engine.EngagementSpec{Title: "c", BudgetMax: 10}); err != nil {
		t.Fatalf("other actor: %v", err)
	}
	// cooldown expiry re-allows
	env.Engine.Now = func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) }
	if _, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{Title: "d", BudgetMax: 10}); err != nil {
		t.Fatalf("create after cooldown: %v", err)
	}
}

func TestTeamFormation(t *testing.T) {
	env := newTestEnv(t)
	project, err := env.Engine.CreateProject(env.Ctx, "client-1", "Website revamp")
	if err != nil {
		t.Fatal(err)
	}

	// empty roster: channel refused
	var ve fault.ValidationError
	if _, err := env.Engine.EnsureChannel(env.Ctx, project.ID, "client-1"); !errors.As(err, &ve) {
		t.Fatalf("channel without team should be invalid, got %v", err)
	}

	for i, freelancer := range []string{"free-1", "free-2"} {
		task, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{
			ProjectID: project.ID,
			Kind:      domain.KindTask,
			Title:     "Task",
			BudgetMax: 100,
		})
		if err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
		p, err := env.Engine.SubmitProposal(env.Ctx, task.ID, freelancer, 100, 1, "")
		if err != nil {
			t.Fatal(err)
		}
		_, o, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := env.Engine.AcceptOrder(env.Ctx, o.ID, freelancer); err != nil {
			t.Fatal(err)
		}
	}

	team, err := env.Engine.DeriveRoster(env.Ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if team.ClientID != "client-1" || len(team.Freelancers) != 2 {
		t.Fatalf("unexpected roster: %+v", team)
	}

	c, err := env.Engine.EnsureChannel(env.Ctx, project.ID, "client-1")
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	want := map[string]bool{"client-1": true, "free-1": true, "free-2": true}
	if len(c.Members) != len(want) {
		t.Fatalf("expected members %v, got %v", want, c.Members)
	}
	for _, m := range c.Members {
		if !want[m] {
			t.Fatalf("unexpected member %s", m)
		}
	}

	// idempotent fetch
	again, err := env.Engine.EnsureChannel(env.Ctx, project.ID, "free-1")
	if err != nil || again.ID != c.ID {
		t.Fatalf("second ensure should return same channel: %v (%s vs %s)", err, again.ID, c.ID)
	}

	// leaving does not clear the pointer while members remain
	if err := env.Engine.LeaveChannel(env.Ctx, project.ID, "free-2"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	p2, err := env.Engine.GetProject(env.Ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p2.ConversationID == nil || *p2.ConversationID != c.ID {
		t.Fatalf("pointer should survive a departure, got %v", p2.ConversationID)
	}
	// leaving twice is not found
	if err := env.Engine.LeaveChannel(env.Ctx, project.ID, "free-2"); err == nil {
		t.Fatalf("expected not found for repeated leave")
	}
	// last members out clear the pointer
	if err := env.Engine.LeaveChannel(env.Ctx, project.ID, "free-1"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.LeaveChannel(env.Ctx, project.ID, "client-1"); err != nil {
		t.Fatal(err)
	}
	p3, err := env.Engine.GetProject(env.Ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p3.ConversationID != nil {
		t.Fatalf("pointer should clear once roster empties, got %v", *p3.ConversationID)
	}
}

func TestGatewayFailureLeavesLedgerUntouched(t *testing.T) {
	env := newTestEnv(t)
	eng := postEngagement(t, env, 100, 100)
	p, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 100, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	_, o, err := env.Engine.AcceptProposal(env.Ctx, p.ID, "client-1")
	if err != nil {
		t.Fatal(err)
	}
	env.Engine.Gateway = failingGateway{}
	var ge fault.GatewayError
	if _, err := env.Engine.FundOrder(env.Ctx, o.ID, "client-1"); !errors.As(err, &ge) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	got, err := env.Engine.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsPaid {
		t.Fatalf("ledger mutated despite gateway failure")
	}
}

type failingGateway struct{}

func (failingGateway) Capture(context.Context, string, int64, string) (gateway.Receipt, error) {
	return gateway.Receipt{}, errors.New("card declined")
}

func (failingGateway) Release(context.Context, string, int64, string) (gateway.Receipt, error) {
	return gateway.Receipt{}, errors.New("transfer failed")
}

func TestAutoRejectSiblings(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Proposals.AutoRejectOnAccept = true
	eng := postEngagement(t, env, 100, 300)
	p1, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-1", 150, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := env.Engine.SubmitProposal(env.Ctx, eng.ID, "free-2", 200, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.Engine.AcceptProposal(env.Ctx, p1.ID, "client-1"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.ListProposals(env.Ctx, eng.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range got {
		if p.ID == p2.ID && p.Status != domain.ProposalRejected {
			t.Fatalf("sibling should be auto-rejected, got %s", p.Status)
		}
	}
}

func TestUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateEngagement(env.Ctx, "client-1", engine.EngagementSpec{
		Title:     "x",
		BudgetMax: 10,
		Category:  "alchemy",
	})
	if err == nil || !strings.Contains(err.Error(), "alchemy") {
		t.Fatalf("expected unknown category error, got %v", err)
	}
}
