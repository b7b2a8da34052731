// Package payment creates gateway orders and verifies completed payments
// before crediting purchases.
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"coursehub/internal/db"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrNotFound          = errors.New("course or user not found")
	ErrCourseUnavailable = errors.New("course is not available for purchase")
	ErrGateway           = errors.New("payment gateway error")
)

type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (map[string]any, error)
}

type PurchaseStore interface {
	Credit(ctx context.Context, userID, courseID, orderID, paymentID string) (bool, error)
}

type Service struct {
	gateway   Gateway
	purchases PurchaseStore
	currency  string
	secret    string
}

type Verification struct {
	PaymentID string
	OrderID   string
	Signature string
	CourseID  string
	UserID    string
}

func NewService(gateway Gateway, purchases PurchaseStore, currency, keySecret string) *Service {
	return &Service{
		gateway:   gateway,
		purchases: purchases,
		currency:  currency,
		secret:    keySecret,
	}
}

// MinorUnits converts a major-unit amount (rupees) to the gateway's minor
// unit (paise).
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateOrder returns the gateway's order object unmodified.
func (s *Service) CreateOrder(ctx context.Context, amount float64) (map[string]any, error) {
	minor := MinorUnits(amount)
	if amount <= 0 || minor <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return nil, ErrInvalidAmount
	}

	receipt, err := newReceipt()
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, minor, s.currency, receipt)
	if err != nil {
		slog.Error("order creation failed", "component", "payment", "receipt", receipt, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return order, nil
}

// VerifyPayment checks the checkout signature and then credits the
// purchase. Nothing is written when the signature does not match. A payment
// already credited reports credited=false without error.
func (s *Service) VerifyPayment(ctx context.Context, v Verification) (credited bool, err error) {
	if !VerifySignature(s.secret, v.OrderID, v.PaymentID, v.Signature) {
		slog.Warn("payment signature mismatch", "component", "payment", "order_id", v.OrderID, "payment_id", v.PaymentID)
		return false, ErrInvalidSignature
	}

	credited, err = s.purchases.Credit(ctx, v.UserID, v.CourseID, v.OrderID, v.PaymentID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return false, ErrNotFound
	case errors.Is(err, db.ErrCourseUnavailable):
		return false, ErrCourseUnavailable
	case err != nil:
		return false, fmt.Errorf("crediting purchase: %w", err)
	}

	if credited {
		slog.Info("purchase credited", "component", "payment", "user_id", v.UserID, "course_id", v.CourseID, "payment_id", v.PaymentID)
	}
	return credited, nil
}

func newReceipt() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating receipt: %w", err)
	}
	return "receipt_" + hex.EncodeToString(b), nil
}
