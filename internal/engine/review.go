package engine

import (
	"context"

	"hireline/internal/domain"
	"hireline/internal/engine/fault"
	"hireline/internal/events"
)

// SubmitReview records the client's one review for a completed order and
// recomputes the freelancer's aggregate rating in the same transaction.
func (e Engine) SubmitReview(ctx context.Context, orderID, raterID string, rating int, comment string) (domain.Review, error) {
	if rating < 1 || rating > 5 {
		return domain.Review{}, fault.ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer tx.Rollback()

	o, err := e.loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Review{}, err
	}
	if o.ClientID != raterID {
		return domain.Review{}, fault.AuthorizationError{ActorID: raterID, Action: "review order " + orderID}
	}
	if o.Status != domain.OrderCompleted || !o.EscrowReleased {
		return domain.Review{}, fault.StateConflictError{Entity: "order", Reason: "can only be reviewed after escrow release (status " + o.Status + ")"}
	}
	if o.HasReview {
		return domain.Review{}, fault.AlreadyExistsError{Entity: "review", Key: "order " + orderID}
	}

	now := e.timestamp()
	rv := domain.Review{
		ID:           newID(),
		OrderID:      orderID,
		FreelancerID: o.FreelancerID,
		Rating:       rating,
		Comment:      comment,
		CreatedAt:    now,
	}
	if err := e.Repo.InsertReview(ctx, tx, rv); err != nil {
		return domain.Review{}, err
	}
	ok, err := e.Repo.MarkOrderReviewed(ctx, tx, orderID, now)
	if err != nil {
		return domain.Review{}, err
	}
	if !ok {
		return domain.Review{}, fault.AlreadyExistsError{Entity: "review", Key: "order " + orderID}
	}
	avg, count, err := e.Repo.RatingAggregate(ctx, tx, o.FreelancerID)
	if err != nil {
		return domain.Review{}, err
	}
	if err := e.Repo.UpdateActorRating(ctx, tx, o.FreelancerID, avg, count); err != nil {
		return domain.Review{}, err
	}
	if err := e.Events.Append(ctx, tx, "review.submitted", e.platformID(), "review", rv.ID, raterID, events.EventPayload{
		"order_id":      orderID,
		"freelancer_id": o.FreelancerID,
		"rating":        rating,
		"rating_avg":    avg,
		"rating_count":  count,
	}); err != nil {
		return domain.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// GetReview is a pure read.
func (e Engine) GetReview(ctx context.Context, orderID string) (domain.Review, error) {
	rv, err := e.Repo.GetReviewByOrder(ctx, nil, orderID)
	if err != nil {
		return domain.Review{}, notFound(err, "review", "order "+orderID)
	}
	return rv, nil
}

// ListReviews returns a freelancer's reviews, newest first.
func (e Engine) ListReviews(ctx context.Context, freelancerID string) ([]domain.Review, error) {
	return e.Repo.ListReviewsForFreelancer(ctx, freelancerID)
}
