package engine

import (
	"context"

	"hireline/internal/domain"
	"hireline/internal/engine/fault"
	"hireline/internal/events"
)

// SubmitProposal files a freelancer's bid against an open engagement.
func (e Engine) SubmitProposal(ctx context.Context, engagementID, bidderID string, price int64, deliveryDays int, pitch string) (domain.Proposal, error) {
	if bidderID == "" {
		return domain.Proposal{}, fault.ValidationError{Field: "freelancer_id", Reason: "required"}
	}
	if price <= 0 {
		return domain.Proposal{}, fault.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if deliveryDays < 0 {
		return domain.Proposal{}, fault.ValidationError{Field: "delivery_days", Reason: "must not be negative"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	eng, err := e.Repo.GetEngagement(ctx, tx, engagementID)
	if err != nil {
		return domain.Proposal{}, notFound(err, "engagement", engagementID)
	}
	if eng.Status != domain.EngagementOpen {
		return domain.Proposal{}, fault.StateConflictError{Entity: "engagement", Reason: "not open for proposals (status " + eng.Status + ")"}
	}
	if eng.OwnerID == bidderID {
		return domain.Proposal{}, fault.AuthorizationError{ActorID: bidderID, Action: "bid on their own engagement"}
	}
	exists, err := e.Repo.ActiveProposalExists(ctx, tx, engagementID, bidderID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if exists {
		return domain.Proposal{}, fault.AlreadyExistsError{Entity: "proposal", Key: "engagement " + engagementID}
	}

	now := e.timestamp()
	p := domain.Proposal{
		ID:           newID(),
		EngagementID: engagementID,
		FreelancerID: bidderID,
		Price:        price,
		DeliveryDays: deliveryDays,
		Pitch:        pitch,
		Status:       domain.ProposalPending,
		CreatedAt:    now,
	}
	if err := e.Repo.EnsureActor(ctx, tx, bidderID, now); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Repo.InsertProposal(ctx, tx, p); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Events.Append(ctx, tx, "proposal.submitted", e.platformID(), "proposal", p.ID, bidderID, events.EventPayload{
		"engagement_id": engagementID,
		"price":         price,
	}); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

// AcceptProposal flips the proposal to accepted, the engagement to assigned
// and creates the order, all in one transaction. The engagement update is a
// compare-and-swap on status open: the first acceptor wins, every concurrent
// sibling accept loses with a state conflict.
func (e Engine) AcceptProposal(ctx context.Context, proposalID, actorID string) (domain.Proposal, domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, domain.Order{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProposal(ctx, tx, proposalID)
	if err != nil {
		return domain.Proposal{}, domain.Order{}, notFound(err, "proposal", proposalID)
	}
	eng, err := e.Repo.GetEngagement(ctx, tx, p.EngagementID)
	if err != nil {
		return p, domain.Order{}, notFound(err, "engagement", p.EngagementID)
	}
	if eng.OwnerID != actorID {
		return p, domain.Order{}, fault.AuthorizationError{ActorID: actorID, Action: "accept proposals on engagement " + eng.ID}
	}
	if p.Status != domain.ProposalPending {
		return p, domain.Order{}, fault.StateConflictError{Entity: "proposal", From: p.Status, To: domain.ProposalAccepted}
	}
	if eng.Status != domain.EngagementOpen {
		return p, domain.Order{}, fault.StateConflictError{Entity: "engagement", Reason: "not open (status " + eng.Status + ")"}
	}
	accepted, err := e.Repo.AcceptedProposalExists(ctx, tx, eng.ID)
	if err != nil {
		return p, domain.Order{}, err
	}
	if accepted {
		return p, domain.Order{}, fault.StateConflictError{Entity: "engagement", Reason: "already has an accepted proposal"}
	}
	active, err := e.Repo.ActiveOrderExists(ctx, tx, eng.ID)
	if err != nil {
		return p, domain.Order{}, err
	}
	if active {
		return p, domain.Order{}, fault.StateConflictError{Entity: "engagement", Reason: "already has an active order"}
	}

	now := e.timestamp()
	ok, err := e.Repo.SetEngagementStatusWhere(ctx, tx, eng.ID, domain.EngagementOpen, domain.EngagementAssigned, now)
	if err != nil {
		return p, domain.Order{}, err
	}
	if !ok {
		return p, domain.Order{}, fault.StateConflictError{Entity: "engagement", Reason: "accepted concurrently"}
	}
	ok, err = e.Repo.SetProposalStatusWhere(ctx, tx, p.ID, domain.ProposalPending, domain.ProposalAccepted)
	if err != nil {
		return p, domain.Order{}, err
	}
	if !ok {
		return p, domain.Order{}, fault.StateConflictError{Entity: "proposal", Reason: "changed concurrently"}
	}

	// price and package snapshot: immutable for the life of the order
	o := domain.Order{
		ID:           newID(),
		EngagementID: eng.ID,
		ClientID:     eng.OwnerID,
		FreelancerID: p.FreelancerID,
		Price:        p.Price,
		Package:      orderPackage(eng, p),
		Status:       domain.OrderPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.Repo.InsertOrder(ctx, tx, o); err != nil {
		return p, domain.Order{}, err
	}

	if e.Config != nil && e.Config.Proposals.AutoRejectOnAccept {
		if _, err := e.Repo.RejectSiblingProposals(ctx, tx, eng.ID, p.ID); err != nil {
			return p, domain.Order{}, err
		}
	}

	if err := e.Events.Append(ctx, tx, "proposal.accepted", e.platformID(), "proposal", p.ID, actorID, events.EventPayload{
		"engagement_id": eng.ID,
		"order_id":      o.ID,
	}); err != nil {
		return p, domain.Order{}, err
	}
	if err := e.Events.Append(ctx, tx, "order.created", e.platformID(), "order", o.ID, actorID, events.EventPayload{
		"engagement_id": eng.ID,
		"freelancer_id": p.FreelancerID,
		"price":         p.Price,
	}); err != nil {
		return p, domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return p, domain.Order{}, err
	}
	p.Status = domain.ProposalAccepted
	return p, o, nil
}

func orderPackage(eng domain.Engagement, p domain.Proposal) string {
	if eng.FixedBudget() {
		return "fixed"
	}
	return "custom"
}

// RejectProposal sets a pending proposal to rejected. Rejecting an already
// rejected proposal returns it unchanged; rejecting an accepted one conflicts.
func (e Engine) RejectProposal(ctx context.Context, proposalID, actorID string) (domain.Proposal, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProposal(ctx, tx, proposalID)
	if err != nil {
		return domain.Proposal{}, notFound(err, "proposal", proposalID)
	}
	eng, err := e.Repo.GetEngagement(ctx, tx, p.EngagementID)
	if err != nil {
		return p, notFound(err, "engagement", p.EngagementID)
	}
	if eng.OwnerID != actorID {
		return p, fault.AuthorizationError{ActorID: actorID, Action: "reject proposals on engagement " + eng.ID}
	}
	if p.Status == domain.ProposalRejected {
		return p, nil
	}
	if p.Status != domain.ProposalPending {
		return p, fault.StateConflictError{Entity: "proposal", From: p.Status, To: domain.ProposalRejected}
	}
	ok, err := e.Repo.SetProposalStatusWhere(ctx, tx, p.ID, domain.ProposalPending, domain.ProposalRejected)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fault.StateConflictError{Entity: "proposal", Reason: "changed concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "proposal.rejected", e.platformID(), "proposal", p.ID, actorID, events.EventPayload{
		"engagement_id": eng.ID,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = domain.ProposalRejected
	return p, nil
}

// ListProposals is a pure read.
func (e Engine) ListProposals(ctx context.Context, engagementID string) ([]domain.Proposal, error) {
	return e.Repo.ListProposals(ctx, engagementID)
}
