package api

import (
	"errors"
	"log/slog"
	"net/http"

	"coursehub/internal/payment"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type CreateOrderRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// POST /create-order
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	order, err := h.payments.CreateOrder(r.Context(), req.Amount)
	switch {
	case errors.Is(err, payment.ErrInvalidAmount):
		badRequest(w, "amount must be positive")
		return
	case errors.Is(err, payment.ErrGateway):
		upstreamError(w, "Unable to create order")
		return
	case err != nil:
		slog.Error("error creating order", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type VerifyPaymentRequest struct {
	PaymentID string `json:"razorpay_payment_id" validate:"required,max=64"`
	OrderID   string `json:"razorpay_order_id" validate:"required,max=64"`
	Signature string `json:"razorpay_signature" validate:"required,max=128"`
	CourseID  string `json:"courseId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
}

// POST /verify-payment
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !canActFor(r, req.UserID) {
		forbidden(w, "Cannot purchase for another user")
		return
	}

	_, err := h.payments.VerifyPayment(r.Context(), payment.Verification{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
		CourseID:  req.CourseID,
		UserID:    req.UserID,
	})
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidSignature, "Invalid payment signature")
		return
	case errors.Is(err, payment.ErrNotFound):
		notFound(w, "Course or User not found")
		return
	case errors.Is(err, payment.ErrCourseUnavailable):
		conflict(w, "Course is not available for purchase")
		return
	case err != nil:
		slog.Error("error verifying payment", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Payment verified successfully"})
}
