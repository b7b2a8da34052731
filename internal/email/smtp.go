package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

type SMTPService struct {
	appName string
	from    string
	dialer  *gomail.Dialer
}

func NewSMTPService(appName, host string, port int, username, password, from string) *SMTPService {
	return &SMTPService{
		appName: appName,
		from:    from,
		dialer:  gomail.NewDialer(host, port, username, password),
	}
}

// SendOTP mails a login code. The context only bounds the wait for the
// send to start; an SMTP exchange already in flight is not interrupted.
func (s *SMTPService) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	msg := s.otpMessage(to, code, ttl)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending otp email: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Warn("otp email still sending after request ended", "component", "email", "to", to)
		return fmt.Errorf("sending otp email: %w", ctx.Err())
	}
}

func (s *SMTPService) otpMessage(to, code string, ttl time.Duration) *gomail.Message {
	body := fmt.Sprintf(`Hello!

Your login code for %s is:

    %s

This code will expire in %d minutes.

If you didn't request this email, you can safely ignore it.

- The %s Team`, s.appName, code, int(ttl.Minutes()), s.appName)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Your %s Login Code", s.appName))
	m.SetBody("text/plain", body)
	return m
}
