package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const OTPDigits = 6

type OTPService struct {
	ttl time.Duration
	now func() time.Time
}

func NewOTPService(ttl time.Duration) *OTPService {
	return NewOTPServiceWithClock(ttl, time.Now)
}

// NewOTPServiceWithClock is NewOTPService with an injectable time source.
func NewOTPServiceWithClock(ttl time.Duration, now func() time.Time) *OTPService {
	return &OTPService{ttl: ttl, now: now}
}

// GenerateCode creates a 6-digit zero-padded numeric code using crypto/rand
func (s *OTPService) GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// ExpiresAt returns when a newly created code should expire
func (s *OTPService) ExpiresAt() time.Time {
	return s.now().Add(s.ttl)
}

func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

func (s *OTPService) Now() time.Time {
	return s.now()
}

// HashOTP binds a code to the address it was sent to.
func HashOTP(email, code string) string {
	h := sha256.Sum256([]byte(strings.ToLower(email) + ":" + code))
	return hex.EncodeToString(h[:])
}
