package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/marketplace-api/internal/domain/auth"
	"github.com/plateful/marketplace-api/internal/domain/coupon"
	"github.com/plateful/marketplace-api/internal/domain/store"
)

type mockStoreRepo struct {
	stores  map[string]store.Store
	byOwner map[string]string
}

func (m *mockStoreRepo) GetByID(_ context.Context, id string) (*store.Store, error) {
	s, ok := m.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *mockStoreRepo) FindByOwner(_ context.Context, ownerID string) (*store.Store, error) {
	id, ok := m.byOwner[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.GetByID(context.Background(), id)
}

type mockCouponLedger struct {
	coupons map[string]coupon.Coupon
}

func (m *mockCouponLedger) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	c, ok := m.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (m *mockCouponLedger) Create(context.Context, *coupon.Coupon) error { return nil }
func (m *mockCouponLedger) FindByCode(context.Context, string) (*coupon.Coupon, error) {
	return nil, coupon.ErrNotFound
}
func (m *mockCouponLedger) List(context.Context) ([]coupon.Coupon, error)       { return nil, nil }
func (m *mockCouponLedger) ListActive(context.Context) ([]coupon.Coupon, error) { return nil, nil }
func (m *mockCouponLedger) Update(context.Context, *coupon.Coupon) error        { return nil }
func (m *mockCouponLedger) Delete(context.Context, string) error                { return nil }
func (m *mockCouponLedger) Reserve(context.Context, string) error               { return nil }
func (m *mockCouponLedger) Release(context.Context, string) error               { return nil }

type mockValidator struct {
	quote *coupon.Quote
	err   error
}

func (m *mockValidator) Validate(context.Context, string, decimal.Decimal) (*coupon.Quote, error) {
	return m.quote, m.err
}

type mockOrderRepo struct {
	orders          map[string]*Order
	createErr       error
	transitionErr   error
	lastCreated     *Order
	transitionCalls int
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.lastCreated = o
	if m.orders == nil {
		m.orders = make(map[string]*Order)
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) List(_ context.Context, f ListFilter) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.StoreID != "" && o.StoreID != f.StoreID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) Transition(_ context.Context, id string, from, to Status) (*Order, error) {
	m.transitionCalls++
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrStatusChanged
	}
	o.Status = to
	cp := *o
	return &cp, nil
}

func newTestService(orders *mockOrderRepo, validator coupon.Validator) *Service {
	stores := &mockStoreRepo{
		stores: map[string]store.Store{
			"s1": {ID: "s1", OwnerID: "seller-1", Name: "Napoli Street Pizza"},
			"s2": {ID: "s2", OwnerID: "seller-2", Name: "Green Bowl Kitchen"},
		},
		byOwner: map[string]string{"seller-1": "s1", "seller-2": "s2"},
	}
	coupons := &mockCouponLedger{
		coupons: map[string]coupon.Coupon{
			"c1": {ID: "c1", Code: "SAVE20", DiscountPercentage: dec("20")},
		},
	}
	return NewService(catalogFixture(), stores, coupons, validator, orders)
}

var (
	customer = auth.Actor{UserID: "cust-1", Role: auth.RoleCustomer}
	seller   = auth.Actor{UserID: "seller-1", Role: auth.RoleSeller}
	admin    = auth.Actor{UserID: "admin-1", Role: auth.RoleAdmin}
)

func TestService_Create(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(repo, &mockValidator{})

	got, err := svc.Create(context.Background(), customer, CreateRequest{
		StoreID: "s1",
		Items: []ItemRequest{
			{FoodID: "f1", Quantity: 2},
			{FoodID: "f2", Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.True(t, dec("35.50").Equal(got.TotalPrice))
	assert.True(t, dec("35.50").Equal(got.FinalPrice))
	assert.Nil(t, got.CouponID)
	require.NotNil(t, got.Store)
	assert.Equal(t, "Napoli Street Pizza", got.Store.Name)
	assert.Len(t, got.Foods, 2)
	require.NotNil(t, repo.lastCreated)
	assert.NotEmpty(t, repo.lastCreated.ID)
}

func TestService_CreateWithCoupon(t *testing.T) {
	c := &coupon.Coupon{ID: "c1", Code: "SAVE20", DiscountPercentage: dec("20")}
	validator := &mockValidator{quote: &coupon.Quote{
		Coupon:     c,
		Discount:   dec("5.00"),
		FinalPrice: dec("30.50"),
	}}

	repo := &mockOrderRepo{}
	svc := newTestService(repo, validator)

	got, err := svc.Create(context.Background(), customer, CreateRequest{
		StoreID:    "s1",
		CouponCode: "save20",
		Items: []ItemRequest{
			{FoodID: "f1", Quantity: 2},
			{FoodID: "f2", Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, got.CouponID)
	assert.Equal(t, "c1", *got.CouponID)
	assert.True(t, dec("35.50").Equal(got.TotalPrice))
	assert.True(t, dec("30.50").Equal(got.FinalPrice))
	require.NotNil(t, got.Coupon)
	assert.Equal(t, "SAVE20", got.Coupon.Code)
}

func TestService_CreateRejectsNonCustomer(t *testing.T) {
	svc := newTestService(&mockOrderRepo{}, &mockValidator{})

	_, err := svc.Create(context.Background(), seller, CreateRequest{
		StoreID: "s1",
		Items:   []ItemRequest{{FoodID: "f1", Quantity: 1}},
	})
	require.ErrorIs(t, err, auth.ErrAccessDenied)
}

func TestService_CreateEmptyItems(t *testing.T) {
	svc := newTestService(&mockOrderRepo{}, &mockValidator{})

	_, err := svc.Create(context.Background(), customer, CreateRequest{StoreID: "s1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestService_CreateInvalidCoupon(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(repo, &mockValidator{err: coupon.ErrExpired})

	_, err := svc.Create(context.Background(), customer, CreateRequest{
		StoreID:    "s1",
		CouponCode: "OLD",
		Items:      []ItemRequest{{FoodID: "f1", Quantity: 1}},
	})
	require.ErrorIs(t, err, coupon.ErrExpired)
	assert.Nil(t, repo.lastCreated)
}

func TestService_CreateCouponExhaustedAtCommit(t *testing.T) {
	c := &coupon.Coupon{ID: "c1", Code: "SAVE20", DiscountPercentage: dec("20")}
	validator := &mockValidator{quote: &coupon.Quote{
		Coupon:     c,
		Discount:   dec("2.20"),
		FinalPrice: dec("8.80"),
	}}

	// The conditional reserve loses the race inside the transaction.
	repo := &mockOrderRepo{createErr: coupon.ErrUsageLimitReached}
	svc := newTestService(repo, validator)

	_, err := svc.Create(context.Background(), customer, CreateRequest{
		StoreID:    "s1",
		CouponCode: "SAVE20",
		Items:      []ItemRequest{{FoodID: "f1", Quantity: 1}},
	})
	require.ErrorIs(t, err, coupon.ErrUsageLimitReached)
}

func seedOrder(repo *mockOrderRepo, status Status, couponID *string) *Order {
	o := &Order{
		ID:         "o1",
		CustomerID: "cust-1",
		StoreID:    "s1",
		Items:      []OrderItem{{FoodID: "f1", Quantity: 1, PriceEach: dec("11.00"), Subtotal: dec("11.00")}},
		TotalPrice: dec("11.00"),
		CouponID:   couponID,
		FinalPrice: dec("11.00"),
		Status:     status,
	}
	if repo.orders == nil {
		repo.orders = make(map[string]*Order)
	}
	repo.orders[o.ID] = o
	return o
}

func TestService_GetAuthorization(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusPending, nil)
	svc := newTestService(repo, &mockValidator{})

	tests := []struct {
		name    string
		actor   auth.Actor
		wantErr error
	}{
		{name: "owner customer", actor: customer},
		{name: "other customer", actor: auth.Actor{UserID: "cust-2", Role: auth.RoleCustomer}, wantErr: auth.ErrAccessDenied},
		{name: "store seller", actor: seller},
		{name: "other seller", actor: auth.Actor{UserID: "seller-2", Role: auth.RoleSeller}, wantErr: auth.ErrAccessDenied},
		{name: "storeless seller", actor: auth.Actor{UserID: "seller-3", Role: auth.RoleSeller}, wantErr: auth.ErrAccessDenied},
		{name: "admin", actor: admin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Get(context.Background(), tt.actor, "o1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "o1", got.ID)
		})
	}
}

func TestService_GetNotFound(t *testing.T) {
	svc := newTestService(&mockOrderRepo{}, &mockValidator{})

	_, err := svc.Get(context.Background(), customer, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListScoping(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]*Order{
		"o1": {ID: "o1", CustomerID: "cust-1", StoreID: "s1", Status: StatusPending},
		"o2": {ID: "o2", CustomerID: "cust-2", StoreID: "s1", Status: StatusPaid},
		"o3": {ID: "o3", CustomerID: "cust-1", StoreID: "s2", Status: StatusPending},
	}}
	svc := newTestService(repo, &mockValidator{})

	got, err := svc.List(context.Background(), customer, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.List(context.Background(), seller, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.List(context.Background(), seller, StatusPaid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o2", got[0].ID)

	got, err = svc.List(context.Background(), admin, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// a seller without a store sees nothing rather than an error
	got, err = svc.List(context.Background(), auth.Actor{UserID: "seller-3", Role: auth.RoleSeller}, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_UpdateStatus(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusPending, nil)
	svc := newTestService(repo, &mockValidator{})

	got, err := svc.UpdateStatus(context.Background(), seller, "o1", "paid")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)

	got, err = svc.UpdateStatus(context.Background(), seller, "o1", "completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestService_UpdateStatusInvalidValue(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusPending, nil)
	svc := newTestService(repo, &mockValidator{})

	_, err := svc.UpdateStatus(context.Background(), seller, "o1", "shipped")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_UpdateStatusIllegalTransition(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusCompleted, nil)
	svc := newTestService(repo, &mockValidator{})

	_, err := svc.UpdateStatus(context.Background(), seller, "o1", "paid")

	var transErr *InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, StatusCompleted, transErr.From)
	assert.Equal(t, StatusPaid, transErr.To)
}

func TestService_UpdateStatusWrongSeller(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusPending, nil)
	svc := newTestService(repo, &mockValidator{})

	_, err := svc.UpdateStatus(context.Background(),
		auth.Actor{UserID: "seller-2", Role: auth.RoleSeller}, "o1", "paid")
	require.ErrorIs(t, err, auth.ErrAccessDenied)
}

func TestService_Cancel(t *testing.T) {
	repo := &mockOrderRepo{}
	couponID := "c1"
	seedOrder(repo, StatusPending, &couponID)
	svc := newTestService(repo, &mockValidator{})

	got, err := svc.Cancel(context.Background(), customer, "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 1, repo.transitionCalls)
}

func TestService_CancelNotOwner(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusPending, nil)
	svc := newTestService(repo, &mockValidator{})

	_, err := svc.Cancel(context.Background(),
		auth.Actor{UserID: "cust-2", Role: auth.RoleCustomer}, "o1")
	require.ErrorIs(t, err, auth.ErrAccessDenied)
	assert.Zero(t, repo.transitionCalls)
}

func TestService_CancelNotPending(t *testing.T) {
	repo := &mockOrderRepo{}
	seedOrder(repo, StatusPaid, nil)
	svc := newTestService(repo, &mockValidator{})

	_, err := svc.Cancel(context.Background(), customer, "o1")
	require.ErrorIs(t, err, ErrNotPending)
	assert.Zero(t, repo.transitionCalls)
}

func TestService_CancelLostRace(t *testing.T) {
	// the order leaves pending between the service's read and the
	// conditional update
	repo := &mockOrderRepo{transitionErr: ErrStatusChanged}
	seedOrder(repo, StatusPending, nil)
	svc := newTestService(repo, &mockValidator{})

	_, err := svc.Cancel(context.Background(), customer, "o1")
	require.ErrorIs(t, err, ErrNotPending)
}
