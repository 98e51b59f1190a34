package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/plateful/marketplace-api/internal/domain/auth"
	"github.com/plateful/marketplace-api/internal/domain/coupon"
	"github.com/plateful/marketplace-api/internal/domain/food"
	"github.com/plateful/marketplace-api/internal/domain/store"
)

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	StoreID    string
	Items      []ItemRequest
	CouponCode string
}

// Service orchestrates the order workflow: pricing, coupon validation and
// reservation, persistence, state transitions, and ownership authorization.
type Service struct {
	pricer    *Pricer
	foods     food.Repository
	stores    store.Repository
	coupons   coupon.Repository
	validator coupon.Validator
	orders    Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	foods food.Repository,
	stores store.Repository,
	coupons coupon.Repository,
	validator coupon.Validator,
	orders Repository,
) *Service {
	return &Service{
		pricer:    NewPricer(foods),
		foods:     foods,
		stores:    stores,
		coupons:   coupons,
		validator: validator,
		orders:    orders,
	}
}

// Create prices the requested items, validates and applies an optional
// coupon, and persists the order with status pending. The coupon reservation
// and the order insert happen in one transaction, so a failure leaves nothing
// behind. Returns the order with referenced entities expanded.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*Detail, error) {
	if !actor.Is(auth.RoleCustomer) {
		return nil, auth.ErrAccessDenied
	}

	items, total, err := s.pricer.Price(ctx, req.StoreID, req.Items)
	if err != nil {
		return nil, err
	}

	finalPrice := total
	var couponID *string
	if req.CouponCode != "" {
		quote, err := s.validator.Validate(ctx, req.CouponCode, total)
		if err != nil {
			return nil, err
		}
		finalPrice = quote.FinalPrice
		couponID = &quote.Coupon.ID
	}

	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: actor.UserID,
		StoreID:    req.StoreID,
		Items:      items,
		TotalPrice: total,
		CouponID:   couponID,
		FinalPrice: finalPrice,
		Status:     StatusPending,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			return nil, coupon.ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "create order")
	}

	return s.resolve(ctx, o)
}

// Get returns a single order, expanded. Customers may only see their own
// orders; sellers only orders for their store.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*Detail, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, actor, o); err != nil {
		return nil, err
	}

	return s.resolve(ctx, o)
}

// List returns orders visible to the actor, optionally filtered by status.
// Customers see their own orders, sellers their store's; a seller without a
// store sees an empty list.
func (s *Service) List(ctx context.Context, actor auth.Actor, status Status) ([]Order, error) {
	f := ListFilter{Status: status}

	switch actor.Role {
	case auth.RoleCustomer:
		f.CustomerID = actor.UserID
	case auth.RoleSeller:
		st, err := s.stores.FindByOwner(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return []Order{}, nil
			}
			return nil, errors.Wrap(err, "find seller store")
		}
		f.StoreID = st.ID
	}

	return s.orders.List(ctx, f)
}

// UpdateStatus applies a seller-triggered status change. The raw value must
// be in the status enum and the change must be a legal transition. Only the
// seller owning the order's store may do this.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id, raw string) (*Detail, error) {
	next, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeSeller(ctx, actor, o); err != nil {
		return nil, err
	}

	if !o.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	updated, err := s.orders.Transition(ctx, id, o.Status, next)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, &InvalidTransitionError{From: o.Status, To: next}
		}
		return nil, errors.Wrap(err, "update order status")
	}

	return s.resolve(ctx, updated)
}

// Cancel is the customer-triggered cancellation: permitted only for the
// order's owner and only while the order is still pending. A reserved coupon
// use is released as part of the same transaction.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id string) (*Detail, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.CustomerID != actor.UserID {
		return nil, auth.ErrAccessDenied
	}

	if o.Status != StatusPending {
		return nil, ErrNotPending
	}

	cancelled, err := s.orders.Transition(ctx, id, StatusPending, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrNotPending
		}
		return nil, errors.Wrap(err, "cancel order")
	}

	return s.resolve(ctx, cancelled)
}

// authorize checks the actor may access the order: customers must own it,
// sellers must own its store. Admins see everything.
func (s *Service) authorize(ctx context.Context, actor auth.Actor, o *Order) error {
	switch actor.Role {
	case auth.RoleCustomer:
		if o.CustomerID != actor.UserID {
			return auth.ErrAccessDenied
		}
	case auth.RoleSeller:
		return s.authorizeSeller(ctx, actor, o)
	}
	return nil
}

func (s *Service) authorizeSeller(ctx context.Context, actor auth.Actor, o *Order) error {
	st, err := s.stores.FindByOwner(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.ErrAccessDenied
		}
		return errors.Wrap(err, "find seller store")
	}
	if st.ID != o.StoreID {
		return auth.ErrAccessDenied
	}
	return nil
}

// resolve expands the order's referenced entities in an explicit read-join.
func (s *Service) resolve(ctx context.Context, o *Order) (*Detail, error) {
	d := &Detail{Order: *o}

	st, err := s.stores.GetByID(ctx, o.StoreID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrap(err, "resolve store")
	}
	d.Store = st

	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.FoodID
	}
	foods, err := s.foods.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve foods")
	}
	d.Foods = make(map[string]food.Food, len(foods))
	for _, f := range foods {
		d.Foods[f.ID] = f
	}

	if o.CouponID != nil {
		c, err := s.coupons.GetByID(ctx, *o.CouponID)
		if err != nil && !errors.Is(err, coupon.ErrNotFound) {
			return nil, errors.Wrap(err, "resolve coupon")
		}
		d.Coupon = c
	}

	return d, nil
}
