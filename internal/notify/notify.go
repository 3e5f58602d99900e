package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"continuity.org/internal/obs"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a fire-and-forget user notification.
type Notice struct {
	Level          Level     `json:"level"`
	Title          string    `json:"title"`
	Message        string    `json:"message,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notifier delivers notices. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Discard drops every notice.
var Discard Notifier = Func(func(context.Context, Notice) {})

// Multi delivers to each notifier in order.
func Multi(ns ...Notifier) Notifier {
	out := make([]Notifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return Func(func(ctx context.Context, n Notice) {
		if n.Timestamp.IsZero() {
			n.Timestamp = time.Now().UTC()
		}
		for _, target := range out {
			target.Notify(ctx, n)
		}
	})
}

// LogSink writes notices to the structured logger.
type LogSink struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (s LogSink) Notify(_ context.Context, n Notice) {
	l := s.Logger
	if l == nil {
		l = obs.Logger()
	}
	fields := []zap.Field{
		zap.String("level", string(n.Level)),
		zap.String("title", n.Title),
	}
	if n.Message != "" {
		fields = append(fields, zap.String("message", n.Message))
	}
	if n.OrganizationID != "" {
		fields = append(fields, zap.String("organization_id", n.OrganizationID))
	}
	if n.Level == LevelError {
		l.Warn("notice", fields...)
		return
	}
	l.Info("notice", fields...)
}

// Error is shorthand for an error notice.
func Error(title string, err error) Notice {
	n := Notice{Level: LevelError, Title: title}
	if err != nil {
		n.Message = err.Error()
	}
	return n
}

// Success is shorthand for a success notice.
func Success(title string) Notice {
	return Notice{Level: LevelSuccess, Title: title}
}
