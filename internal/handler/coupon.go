package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plateful/marketplace-api/internal/domain/coupon"
)

// Input validation errors for the coupon endpoints.
var (
	errCodeRequired     = errors.New("code is required")
	errBadDiscount      = errors.New("discountPercentage must be between 0 and 100")
	errBadUsageLimit    = errors.New("usageLimit must be greater than 0")
	errInvalidExpiresAt = errors.New("expiresAt must be an RFC3339 timestamp")
)

// --- Request / Response DTOs ---

type createCouponRequest struct {
	Code               string   `json:"code"`
	DiscountPercentage float64  `json:"discountPercentage"`
	MaxDiscountAmount  *float64 `json:"maxDiscountAmount,omitempty"`
	ExpiresAt          string   `json:"expiresAt"` // RFC3339
	UsageLimit         int      `json:"usageLimit"`
	MinimumOrder       float64  `json:"minimumOrder,omitempty"`
}

type updateCouponRequest struct {
	Code               *string  `json:"code,omitempty"`
	DiscountPercentage *float64 `json:"discountPercentage,omitempty"`
	MaxDiscountAmount  *float64 `json:"maxDiscountAmount,omitempty"`
	ExpiresAt          *string  `json:"expiresAt,omitempty"`
	UsageLimit         *int     `json:"usageLimit,omitempty"`
	MinimumOrder       *float64 `json:"minimumOrder,omitempty"`
}

type couponResponse struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage float64   `json:"discountPercentage"`
	MaxDiscountAmount  *float64  `json:"maxDiscountAmount,omitempty"`
	ExpiresAt          time.Time `json:"expiresAt"`
	UsageLimit         int       `json:"usageLimit"`
	UsedCount          int       `json:"usedCount"`
	MinimumOrder       float64   `json:"minimumOrder"`
}

type validateCouponRequest struct {
	Code       string  `json:"code"`
	OrderTotal float64 `json:"orderTotal"`
}

type validateCouponResponse struct {
	Valid      bool           `json:"valid"`
	Coupon     couponResponse `json:"coupon"`
	Discount   float64        `json:"discount"`
	FinalPrice float64        `json:"finalPrice"`
}

// --- Handlers ---

// CreateCoupon handles POST /api/coupons. The code is stored uppercased.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := couponFromCreateRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

// ListCoupons handles GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCouponList(w, coupons)
}

// ListActiveCoupons handles GET /api/coupons/active: coupons that are not
// expired and still have uses left.
func (h *Handler) ListActiveCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListActive(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCouponList(w, coupons)
}

// GetCoupon handles GET /api/coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

// UpdateCoupon handles PUT /api/coupons/{id}. Fields absent from the body
// keep their stored values.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req updateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := applyCouponUpdate(c, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coupons.Update(r.Context(), c); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

// DeleteCoupon handles DELETE /api/coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "coupon deleted successfully"})
}

// ValidateCoupon handles POST /api/coupons/validate: the validate-only check
// that computes the discount for an order total without reserving a use.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	quote, err := h.validator.Validate(r.Context(), req.Code, decimal.NewFromFloat(req.OrderTotal))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateCouponResponse{
		Valid:      true,
		Coupon:     toCouponResponse(quote.Coupon),
		Discount:   quote.Discount.InexactFloat64(),
		FinalPrice: quote.FinalPrice.InexactFloat64(),
	})
}

// --- Mapping helpers ---

func couponFromCreateRequest(req createCouponRequest) (*coupon.Coupon, error) {
	if err := validateCouponFields(req.Code, req.DiscountPercentage, req.UsageLimit); err != nil {
		return nil, err
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		return nil, errInvalidExpiresAt
	}

	c := &coupon.Coupon{
		ID:                 uuid.New().String(),
		Code:               strings.ToUpper(req.Code),
		DiscountPercentage: decimal.NewFromFloat(req.DiscountPercentage),
		ExpiresAt:          expiresAt,
		UsageLimit:         req.UsageLimit,
		MinimumOrder:       decimal.NewFromFloat(req.MinimumOrder),
	}
	if req.MaxDiscountAmount != nil {
		d := decimal.NewFromFloat(*req.MaxDiscountAmount)
		c.MaxDiscountAmount = &d
	}
	return c, nil
}

func applyCouponUpdate(c *coupon.Coupon, req updateCouponRequest) error {
	if req.Code != nil {
		c.Code = strings.ToUpper(*req.Code)
	}
	if req.DiscountPercentage != nil {
		c.DiscountPercentage = decimal.NewFromFloat(*req.DiscountPercentage)
	}
	if req.MaxDiscountAmount != nil {
		d := decimal.NewFromFloat(*req.MaxDiscountAmount)
		c.MaxDiscountAmount = &d
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return errInvalidExpiresAt
		}
		c.ExpiresAt = t
	}
	if req.UsageLimit != nil {
		c.UsageLimit = *req.UsageLimit
	}
	if req.MinimumOrder != nil {
		c.MinimumOrder = decimal.NewFromFloat(*req.MinimumOrder)
	}
	return validateCouponFields(c.Code, c.DiscountPercentage.InexactFloat64(), c.UsageLimit)
}

func validateCouponFields(code string, discountPercentage float64, usageLimit int) error {
	switch {
	case strings.TrimSpace(code) == "":
		return errCodeRequired
	case discountPercentage < 0 || discountPercentage > 100:
		return errBadDiscount
	case usageLimit <= 0:
		return errBadUsageLimit
	}
	return nil
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:                 c.ID,
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage.InexactFloat64(),
		ExpiresAt:          c.ExpiresAt,
		UsageLimit:         c.UsageLimit,
		UsedCount:          c.UsedCount,
		MinimumOrder:       c.MinimumOrder.InexactFloat64(),
	}
	if c.MaxDiscountAmount != nil {
		f := c.MaxDiscountAmount.InexactFloat64()
		resp.MaxDiscountAmount = &f
	}
	return resp
}

func writeCouponList(w http.ResponseWriter, coupons []coupon.Coupon) {
	out := make([]couponResponse, len(coupons))
	for i := range coupons {
		out[i] = toCouponResponse(&coupons[i])
	}
	writeJSON(w, http.StatusOK, out)
}
