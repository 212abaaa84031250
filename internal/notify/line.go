package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/config"
)

// Messenger is the outbound messaging collaborator. Delivery is
// best-effort: callers treat a returned error as a dropped notification,
// never as a failed transition.
type Messenger interface {
	Push(ctx context.Context, recipientID, message string) error
	PushMulti(ctx context.Context, recipientIDs []string, message string)
}

// LineClient pushes text messages through the LINE bot API.
type LineClient struct {
	token   string
	pushURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewLineClient builds the client. Returns nil when no channel token is
// configured; a nil Messenger silently drops every push.
func NewLineClient(cfg config.LineConfig, logger *zap.Logger) *LineClient {
	if cfg.ChannelToken == "" {
		logger.Warn("LINE channel token not configured; notifications disabled")
		return nil
	}
	return &LineClient{
		token:   cfg.ChannelToken,
		pushURL: cfg.PushURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []pushMessage `json:"messages"`
}

type pushMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Push sends one text message to a recipient.
func (l *LineClient) Push(ctx context.Context, recipientID, message string) error {
	if l == nil {
		return nil
	}
	if recipientID == "" {
		return fmt.Errorf("empty recipient id")
	}

	body, err := json.Marshal(pushRequest{
		To:       recipientID,
		Messages: []pushMessage{{Type: "text", Text: message}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.pushURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("line push status %d", resp.StatusCode)
	}
	l.logger.Debug("line push delivered", zap.String("to", recipientID))
	return nil
}

// PushMulti sends the message to every recipient, logging and continuing
// past individual failures.
func (l *LineClient) PushMulti(ctx context.Context, recipientIDs []string, message string) {
	if l == nil {
		return
	}
	for _, id := range recipientIDs {
		if err := l.Push(ctx, id, message); err != nil {
			l.logger.Warn("line push failed", zap.String("to", id), zap.Error(err))
		}
	}
}
