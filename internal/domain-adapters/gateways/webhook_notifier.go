package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
)

// OutcomeNotifier emits the single per-run success/failure signal. The
// JSON payload always goes to the output writer; when a webhook URL is
// configured it is POSTed there as well for the external notification
// subsystem.
type OutcomeNotifier struct {
	webhookURL string
	out        io.Writer
	httpClient *http.Client
	logger     interfaces.Logger
}

// NewOutcomeNotifier creates a notifier. An empty webhookURL keeps the
// signal local to the output writer.
func NewOutcomeNotifier(webhookURL string, out io.Writer, logger interfaces.Logger) *OutcomeNotifier {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &OutcomeNotifier{
		webhookURL: webhookURL,
		out:        out,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Notify delivers the outcome signal.
func (n *OutcomeNotifier) Notify(ctx context.Context, signal *entities.OutcomeSignal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	if _, err := fmt.Fprintln(n.out, string(payload)); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}

	if n.webhookURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook delivered",
		interfaces.F("run_id", signal.RunID),
		interfaces.F("outcome", signal.Outcome))
	return nil
}
