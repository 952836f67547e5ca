package ddnsd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// NewWebhook returns a Notifier that POSTs a JSON document to url for
// every cycle that changed records. Transient failures are retried with
// exponential backoff for up to a minute; a still-failing delivery is
// reported as ErrDeliveryFailed and otherwise dropped.
func NewWebhook(url string, client *http.Client) Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &webhookNotifier{url: url, client: client}
}

type webhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Addresses []string `json:"addresses"`
}

func (n *webhookNotifier) Notify(ctx context.Context, addrs []netip.Addr) error {
	payload := webhookPayload{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Addresses: lo.Map(addrs, func(a netip.Addr, _ int) string { return a.String() }),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(ErrDeliveryFailed, "encoding payload: %s", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Minute

	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return errors.Errorf("webhook returned %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(errors.Errorf("webhook returned %s", resp.Status))
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return errors.Wrapf(ErrDeliveryFailed, "posting to %s: %s", n.url, err)
	}
	return nil
}
