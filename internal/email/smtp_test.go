package email

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestOTPMessageContainsCodeAndExpiry(t *testing.T) {
	svc := NewSMTPService("CourseHub", "smtp.example.com", 587, "", "", "noreply@example.com")

	var buf bytes.Buffer
	if _, err := svc.otpMessage("student@example.com", "012345", 5*time.Minute).WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	raw := buf.String()

	for _, want := range []string{
		"To: student@example.com",
		"From: noreply@example.com",
		"Subject: Your CourseHub Login Code",
		"012345",
		"expire in 5 minutes",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}
}
