package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/plateful/marketplace-api/internal/domain/order"
)

// --- Request / Response DTOs ---

type createOrderRequest struct {
	StoreID    string             `json:"storeId"`
	Items      []orderItemRequest `json:"items"`
	CouponCode string             `json:"couponCode,omitempty"`
}

type orderItemRequest struct {
	FoodID   string `json:"foodId"`
	Quantity int    `json:"quantity"`
}

type orderItemResponse struct {
	FoodID    string        `json:"foodId"`
	Food      *foodResponse `json:"food,omitempty"`
	Quantity  int           `json:"quantity"`
	PriceEach float64       `json:"priceEach"`
	Subtotal  float64       `json:"subtotal"`
}

type foodResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	IsAvailable bool    `json:"isAvailable"`
}

type storeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customerId"`
	StoreID    string              `json:"storeId"`
	Store      *storeResponse      `json:"store,omitempty"`
	Items      []orderItemResponse `json:"items"`
	TotalPrice float64             `json:"totalPrice"`
	CouponID   *string             `json:"couponId,omitempty"`
	Coupon     *couponResponse     `json:"coupon,omitempty"`
	FinalPrice float64             `json:"finalPrice"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StoreID == "" {
		writeError(w, http.StatusBadRequest, "storeId is required")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{FoodID: it.FoodID, Quantity: it.Quantity}
	}

	d, err := h.orders.Create(r.Context(), actor, order.CreateRequest{
		StoreID:    req.StoreID,
		Items:      items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(d))
}

// ListOrders handles GET /api/orders with an optional status filter.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var status order.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := order.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	orders, err := h.orders.List(r.Context(), actor, status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&order.Detail{Order: orders[i]})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	d, err := h.orders.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(d))
}

// UpdateOrderStatus handles PUT /api/orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.orders.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(d))
}

// CancelOrder handles PUT /api/orders/{id}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	d, err := h.orders.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(d))
}

// toOrderResponse maps a resolved order to its response shape. Expanded
// entities are included only when the detail carries them.
func toOrderResponse(d *order.Detail) orderResponse {
	resp := orderResponse{
		ID:         d.ID,
		CustomerID: d.CustomerID,
		StoreID:    d.StoreID,
		Items:      make([]orderItemResponse, len(d.Items)),
		TotalPrice: d.TotalPrice.InexactFloat64(),
		CouponID:   d.CouponID,
		FinalPrice: d.FinalPrice.InexactFloat64(),
		Status:     string(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}

	for i, it := range d.Items {
		item := orderItemResponse{
			FoodID:    it.FoodID,
			Quantity:  it.Quantity,
			PriceEach: it.PriceEach.InexactFloat64(),
			Subtotal:  it.Subtotal.InexactFloat64(),
		}
		if f, ok := d.Foods[it.FoodID]; ok {
			item.Food = &foodResponse{
				ID:          f.ID,
				Name:        f.Name,
				Price:       f.Price.InexactFloat64(),
				IsAvailable: f.IsAvailable,
			}
		}
		resp.Items[i] = item
	}

	if d.Store != nil {
		resp.Store = &storeResponse{ID: d.Store.ID, Name: d.Store.Name}
	}
	if d.Coupon != nil {
		c := toCouponResponse(d.Coupon)
		resp.Coupon = &c
	}

	return resp
}
