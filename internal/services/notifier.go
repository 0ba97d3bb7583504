package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Notifier delivers terminal-state callbacks to the URL a job registered
// at intake. Delivery is best effort: a dead callback endpoint never
// fails the pipeline.
type Notifier interface {
	NotifyJob(ctx context.Context, callbackURL string, jobID uuid.UUID, status string, errDetails string)
}

type webhookNotifier struct {
	log    *logger.Logger
	client *http.Client
}

func NewWebhookNotifier(log *logger.Logger) Notifier {
	return &webhookNotifier{
		log:    log.With("service", "WebhookNotifier"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type jobCallback struct {
	JobID        uuid.UUID `json:"job_id"`
	Status       string    `json:"status"`
	ErrorDetails string    `json:"error_details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (wn *webhookNotifier) NotifyJob(ctx context.Context, callbackURL string, jobID uuid.UUID, status string, errDetails string) {
	if callbackURL == "" {
		return
	}
	payload, err := json.Marshal(jobCallback{
		JobID:        jobID,
		Status:       status,
		ErrorDetails: errDetails,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		wn.log.Error("marshal callback payload", "job_id", jobID, "error", err)
		return
	}

	backoff := 2 * time.Second
	for attempt := 0; attempt < 3; attempt++ {
		if err := wn.post(ctx, callbackURL, payload); err == nil {
			return
		} else if attempt == 2 {
			wn.log.Warn("job callback delivery failed", "job_id", jobID, "url", callbackURL, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (wn *webhookNotifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := wn.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback status %d", resp.StatusCode)
	}
	return nil
}
