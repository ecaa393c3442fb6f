package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campusbeep/beep-server/pkg/logger"
)

// PushDispatcher posts notifications to an Expo-compatible push
// endpoint keyed by the recipient's device token.
type PushDispatcher struct {
	endpoint  string
	accessKey string
	client    *http.Client
	logger    *logger.Logger
}

// NewPushDispatcher creates a dispatcher against the given endpoint
func NewPushDispatcher(endpoint, accessKey string, log *logger.Logger) *PushDispatcher {
	return &PushDispatcher{
		endpoint:  endpoint,
		accessKey: accessKey,
		client:    &http.Client{Timeout: 3 * time.Second},
		logger:    log,
	}
}

type pushPayload struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

// Send implements Notifier
func (p *PushDispatcher) Send(ctx context.Context, pushToken, title, body string) error {
	if pushToken == "" {
		return nil
	}

	b, err := json.Marshal(pushPayload{To: pushToken, Title: title, Body: body, Sound: "default"})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.accessKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push provider returned %d", resp.StatusCode)
	}

	p.logger.Debug("Push notification delivered",
		logger.String("title", title),
	)
	return nil
}
