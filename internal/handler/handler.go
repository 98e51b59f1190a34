// Package handler exposes the order and coupon workflows over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/plateful/marketplace-api/internal/domain/auth"
	"github.com/plateful/marketplace-api/internal/domain/coupon"
	"github.com/plateful/marketplace-api/internal/domain/order"
)

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	orders    *order.Service
	coupons   coupon.Repository
	validator coupon.Validator
	auth      *Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	coupons coupon.Repository,
	validator coupon.Validator,
	authn *Authenticator,
) *Handler {
	return &Handler{
		orders:    orders,
		coupons:   coupons,
		validator: validator,
		auth:      authn,
	}
}

// Routes builds the chi router for the /api surface. Role guards mirror the
// resource ownership rules: customers place and cancel orders, sellers manage
// coupons and order statuses; the active-coupon listing and the validate-only
// check are public.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/active", h.ListActiveCoupons)
			r.Post("/validate", h.ValidateCoupon)

			r.Group(func(r chi.Router) {
				r.Use(h.auth.Require, h.auth.RequireRole(auth.RoleSeller))
				r.Post("/", h.CreateCoupon)
				r.Get("/", h.ListCoupons)
				r.Get("/{id}", h.GetCoupon)
				r.Put("/{id}", h.UpdateCoupon)
				r.Delete("/{id}", h.DeleteCoupon)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.auth.Require)
			r.With(h.auth.RequireRole(auth.RoleCustomer)).Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.With(h.auth.RequireRole(auth.RoleSeller)).Put("/{id}/status", h.UpdateOrderStatus)
			r.With(h.auth.RequireRole(auth.RoleCustomer)).Put("/{id}/cancel", h.CancelOrder)
		})
	})

	return r
}

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}

// writeDomainError maps domain errors onto the HTTP error taxonomy:
// validation failures to 400, missing entities to 404, authorization
// failures to 403, everything else to 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var foodNotFound *order.FoodNotFoundError
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.As(err, &foodNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, auth.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())

	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isValidationError(err error) bool {
	var (
		unavailable *order.FoodUnavailableError
		badQuantity *order.InvalidQuantityError
		badTransit  *order.InvalidTransitionError
		minOrder    *coupon.MinimumOrderError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrStoreMismatch),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrNotPending),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrCodeExists):
		return true
	case errors.As(err, &unavailable),
		errors.As(err, &badQuantity),
		errors.As(err, &badTransit),
		errors.As(err, &minOrder):
		return true
	}
	return false
}
