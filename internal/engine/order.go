package engine

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
	"hireline/internal/engine/fault"
	"hireline/internal/events"
)

func (e Engine) loadOrder(ctx context.Context, tx *sql.Tx, orderID string) (domain.Order, error) {
	o, err := e.Repo.GetOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, notFound(err, "order", orderID)
	}
	return o, nil
}

// AcceptOrder is the freelancer's acknowledgement of a freshly created order:
// pending -> accepted.
func (e Engine) AcceptOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.FreelancerID != actorID {
		return o, fault.AuthorizationError{ActorID: actorID, Action: "accept order " + orderID}
	}
	if o.Status != domain.OrderPending {
		return o, fault.StateConflictError{Entity: "order", From: o.Status, To: domain.OrderAccepted}
	}
	ok, err := e.Repo.SetOrderStatusWhere(ctx, tx, orderID, domain.OrderPending, domain.OrderAccepted, e.timestamp())
	if err != nil {
		return o, err
	}
	if !ok {
		return o, fault.StateConflictError{Entity: "order", Reason: "changed concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "order.accepted", e.platformID(), "order", orderID, actorID, nil); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = domain.OrderAccepted
	return o, nil
}

// StartOrder moves an accepted, funded order into in_progress and mirrors the
// engagement. Work never starts before escrow is held.
func (e Engine) StartOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.FreelancerID != actorID {
		return o, fault.AuthorizationError{ActorID: actorID, Action: "start order " + orderID}
	}
	if o.Status != domain.OrderAccepted {
		return o, fault.StateConflictError{Entity: "order", From: o.Status, To: domain.OrderInProgress}
	}
	if !o.IsPaid {
		return o, fault.StateConflictError{Entity: "order", Reason: "cannot start before escrow is funded"}
	}
	now := e.timestamp()
	ok, err := e.Repo.SetOrderStatusWhere(ctx, tx, orderID, domain.OrderAccepted, domain.OrderInProgress, now)
	if err != nil {
		return o, err
	}
	if !ok {
		return o, fault.StateConflictError{Entity: "order", Reason: "changed concurrently"}
	}
	if _, err := e.Repo.SetEngagementStatusWhere(ctx, tx, o.EngagementID, domain.EngagementAssigned, domain.EngagementInProgress, now); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "order.started", e.platformID(), "order", orderID, actorID, nil); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = domain.OrderInProgress
	return o, nil
}

// FundOrder captures the client's funds into custody. The gateway is invoked
// only after the unpaid precondition holds inside the transaction, so a
// retried fund on an already funded order conflicts without a second capture.
func (e Engine) FundOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.ClientID != actorID {
		return o, fault.AuthorizationError{ActorID: actorID, Action: "fund order " + orderID}
	}
	if o.IsPaid {
		return o, fault.StateConflictError{Entity: "order", Reason: "already funded"}
	}
	if o.Terminal() {
		return o, fault.StateConflictError{Entity: "order", Reason: "already completed"}
	}

	currency := "USD"
	if e.Config != nil && e.Config.Escrow.Currency != "" {
		currency = e.Config.Escrow.Currency
	}
	receipt, err := e.Gateway.Capture(ctx, o.ID, o.Price, currency)
	if err != nil {
		return o, fault.GatewayError{Op: "capture", Err: err}
	}
	now := e.timestamp()
	ok, err := e.Repo.MarkOrderPaid(ctx, tx, orderID, now)
	if err != nil {
		return o, err
	}
	if !ok {
		return o, fault.StateConflictError{Entity: "order", Reason: "funded concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "order.funded", e.platformID(), "order", orderID, actorID, events.EventPayload{
		"amount":    o.Price,
		"currency":  currency,
		"reference": receipt.Reference,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.IsPaid = true
	return o, nil
}

// MarkDelivered is the freelancer's delivery: in_progress -> delivered.
func (e Engine) MarkDelivered(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.FreelancerID != actorID {
		return o, fault.AuthorizationError{ActorID: actorID, Action: "deliver order " + orderID}
	}
	if o.Status != domain.OrderInProgress {
		return o, fault.StateConflictError{Entity: "order", From: o.Status, To: domain.OrderDelivered}
	}
	now := e.timestamp()
	ok, err := e.Repo.SetOrderStatusWhere(ctx, tx, orderID, domain.OrderInProgress, domain.OrderDelivered, now)
	if err != nil {
		return o, err
	}
	if !ok {
		return o, fault.StateConflictError{Entity: "order", Reason: "changed concurrently"}
	}
	if _, err := e.Repo.SetEngagementStatusWhere(ctx, tx, o.EngagementID, domain.EngagementInProgress, domain.EngagementDelivered, now); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "order.delivered", e.platformID(), "order", orderID, actorID, nil); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = domain.OrderDelivered
	return o, nil
}

// RequestRelease is the freelancer's nudge toward the client once delivered.
// It emits a notification event and changes no ledger state.
func (e Engine) RequestRelease(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.FreelancerID != actorID {
		return o, fault.AuthorizationError{ActorID: actorID, Action: "request release on order " + orderID}
	}
	if o.Status != domain.OrderDelivered {
		return o, fault.StateConflictError{Entity: "order", Reason: "release can only be requested after delivery (status " + o.Status + ")"}
	}
	if o.EscrowReleased {
		return o, fault.StateConflictError{Entity: "order", Reason: "escrow already released"}
	}
	if err := e.Events.Append(ctx, tx, "order.release_requested", e.platformID(), "order", orderID, actorID, events.EventPayload{
		"client_id": o.ClientID,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	return o, nil
}

// ReleaseOrder transfers custody to the freelancer and completes the order.
// The ledger write carries the version read at the start of the transaction,
// so two near-simultaneous releases cannot both land.
func (e Engine) ReleaseOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.ClientID != actorID {
		return o, fault.AuthorizationError{ActorID: actorID, Action: "release order " + orderID}
	}
	if o.EscrowReleased {
		return o, fault.StateConflictError{Entity: "order", Reason: "escrow already released"}
	}
	if o.Status != domain.OrderDelivered {
		return o, fault.StateConflictError{Entity: "order", From: o.Status, To: domain.OrderCompleted}
	}
	if !o.IsPaid {
		return o, fault.StateConflictError{Entity: "order", Reason: "cannot release unfunded escrow"}
	}

	currency := "USD"
	if e.Config != nil && e.Config.Escrow.Currency != "" {
		currency = e.Config.Escrow.Currency
	}
	receipt, err := e.Gateway.Release(ctx, o.ID, o.Price, currency)
	if err != nil {
		return o, fault.GatewayError{Op: "release", Err: err}
	}
	now := e.timestamp()
	ok, err := e.Repo.ReleaseOrderEscrow(ctx, tx, orderID, o.Version, now)
	if err != nil {
		return o, err
	}
	if !ok {
		return o, fault.StateConflictError{Entity: "order", Reason: "released concurrently"}
	}
	if _, err := e.Repo.SetEngagementStatusWhere(ctx, tx, o.EngagementID, domain.EngagementDelivered, domain.EngagementCompleted, now); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "order.released", e.platformID(), "order", orderID, actorID, events.EventPayload{
		"amount":        o.Price,
		"currency":      currency,
		"reference":     receipt.Reference,
		"freelancer_id": o.FreelancerID,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.EscrowReleased = true
	o.Status = domain.OrderCompleted
	return o, nil
}

// GetOrder is a pure read.
func (e Engine) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return e.loadOrder(ctx, nil, orderID)
}

// ListOrders is a pure read of the actor's orders on either side.
func (e Engine) ListOrders(ctx context.Context, actorID string) ([]domain.Order, error) {
	return e.Repo.ListOrdersForActor(ctx, actorID)
}
