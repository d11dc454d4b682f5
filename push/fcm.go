package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initialises the Firebase app from a service account file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase messaging: %w", err)
	}
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, token string, msg Message) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	id, err := s.client.Send(ctx, BuildFCMMessage(token, msg))
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		return "", fmt.Errorf("fcm send failed: %w", err)
	}
	return id, nil
}

// BuildFCMMessage maps a Message onto the FCM payload. Title and body always travel in data as
// well so the app can render data-only pushes itself.
func BuildFCMMessage(token string, msg Message) *messaging.Message {
	data := make(map[string]string, len(msg.Data)+2)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["title"] = msg.Title
	data["body"] = msg.Body

	m := &messaging.Message{
		Token: token,
		Data:  data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{ContentAvailable: true},
			},
		},
	}
	if msg.CollapseKey != "" {
		m.Android.CollapseKey = msg.CollapseKey
		m.APNS.Headers["apns-collapse-id"] = msg.CollapseKey
	}
	if !msg.DataOnly {
		m.Notification = &messaging.Notification{Title: msg.Title, Body: msg.Body}
		m.APNS.Payload.Aps.Sound = "default"
	}
	return m
}
