package rental

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ReturnRequest holds the input for checking a rental back in.
type ReturnRequest struct {
	// ReturnedAt defaults to the current time when nil.
	ReturnedAt *time.Time
	Condition  Condition
}

// OverdueScan is the result of one overdue sweep.
type OverdueScan struct {
	Count   int
	Rentals []Rental
}

// Service encapsulates rental ledger business logic.
type Service struct {
	rentals Repository
	now     func() time.Time
}

// NewService creates a rental Service.
func NewService(rentals Repository) *Service {
	return &Service{
		rentals: rentals,
		now:     time.Now,
	}
}

// GetUserRentals lists rentals whose order belongs to userID.
func (s *Service) GetUserRentals(ctx context.Context, userID string) ([]Rental, error) {
	rs, err := s.rentals.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user rentals")
	}
	return rs, nil
}

// GetAllRentals lists every rental.
func (s *Service) GetAllRentals(ctx context.Context) ([]Rental, error) {
	rs, err := s.rentals.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list rentals")
	}
	return rs, nil
}

// ProcessReturn settles a returned rental: late fee, deposit refund and the
// resulting deposit status.
func (s *Service) ProcessReturn(ctx context.Context, id string, req ReturnRequest) (*Settlement, error) {
	if req.Condition == "" {
		req.Condition = ConditionGood
	}

	r, err := s.rentals.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get rental")
	}
	if !r.Status.Returnable() {
		return nil, ErrNotReturnable
	}

	returned := s.now().UTC()
	if req.ReturnedAt != nil {
		returned = req.ReturnedAt.UTC()
	}

	st := Settle(r, returned, req.Condition)
	if err := s.rentals.SaveReturn(ctx, r); err != nil {
		return nil, errors.Wrap(err, "save return")
	}

	zctx.From(ctx).Info("Rental returned",
		zap.String("rental_id", r.ID),
		zap.Int("days_late", st.DaysLate),
		zap.String("late_fee", st.LateFee.StringFixed(2)),
		zap.String("deposit_refund", st.DepositRefund.StringFixed(2)),
	)
	return &st, nil
}

// CheckOverdueRentals flags active rentals past their end date as overdue.
// Running it again without intervening changes flags nothing.
func (s *Service) CheckOverdueRentals(ctx context.Context) (*OverdueScan, error) {
	rs, err := s.rentals.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "mark overdue")
	}
	if len(rs) > 0 {
		zctx.From(ctx).Info("Rentals marked overdue", zap.Int("count", len(rs)))
	}
	return &OverdueScan{Count: len(rs), Rentals: rs}, nil
}
