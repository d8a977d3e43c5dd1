package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Notifier delivers comparison results as JSON to a callback URL.
type Notifier struct {
	URL    string
	Method string
	Client *http.Client
}

// NewNotifier retries gateway errors, conflicts and connection failures up
// to three times. The timeout bounds each attempt including retries.
func NewNotifier(url string, timeout time.Duration) *Notifier {
	return &Notifier{
		URL:    url,
		Method: http.MethodPost,
		Client: &http.Client{
			Timeout: timeout,
			Transport: &Transport{
				Base:    http.DefaultTransport,
				Backoff: ExponentialBackoff(10*time.Millisecond, time.Second, 3, nil),
				Policy:  DefaultRetryPolicy(),
			},
		},
	}
}

// StatusError reports a callback answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback responded with status %d: %s", e.StatusCode, e.Body)
}

func (n *Notifier) Send(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Errorf("failed to marshal payload: %w", err)
	}

	method := n.Method
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, n.URL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return &StatusError{StatusCode: response.StatusCode, Body: string(body)}
	}
	return nil
}
