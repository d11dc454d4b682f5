package push

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrTokenInvalid means the device token is unregistered or malformed and should be dropped.
	ErrTokenInvalid = errors.New("push token is invalid")
	ErrEmptyToken   = errors.New("push token is empty")
)

// Message is a push for one device. DataOnly messages carry no visible notification
// and are used for users that already hold a live websocket.
type Message struct {
	Title       string
	Body        string
	Data        map[string]string
	DataOnly    bool
	// CollapseKey groups pushes of one schedule on the device.
	CollapseKey string
}

type Sender interface {
	Send(ctx context.Context, token string, msg Message) (string, error)
}

// LogSender only logs. It stands in when no Firebase credentials are configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, token string, msg Message) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "push skipped, sender not configured",
		slog.String("title", msg.Title),
		slog.Bool("data_only", msg.DataOnly))
	return "", nil
}
