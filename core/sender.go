package core

import (
	"context"
	"log/slog"
)

// Sender delivers secrets out of band. Implementations wrap an email or
// SMS provider; delivery failures are logged by the Manager and never
// surfaced to the caller.
type Sender interface {
	SendMagicLink(ctx context.Context, email, rawToken string) error
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender writes secrets to the log instead of delivering them.
// Development only.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *LogSender) SendMagicLink(_ context.Context, email, rawToken string) error {
	s.logger().Info("magic link issued",
		slog.String("to", MaskIdentifier(email)),
		slog.String("token", rawToken))
	return nil
}

func (s *LogSender) SendOTP(_ context.Context, phone, code string) error {
	s.logger().Info("otp issued",
		slog.String("to", MaskIdentifier(phone)),
		slog.String("code", code))
	return nil
}
