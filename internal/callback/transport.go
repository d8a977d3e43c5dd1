package callback

import (
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries failed round trips according to Policy, waiting as
// long as Backoff says between attempts. Requests with a body are replayed
// through GetBody, so bodies must come from http.NewRequest with a
// bytes.Reader, bytes.Buffer or strings.Reader.
type Transport struct {
	Base    http.RoundTripper
	Backoff Backoff
	Policy  *RetryPolicy
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()

	for retry := uint(0); ; retry++ {
		attempt := request
		if retry > 0 && request.Body != nil && request.Body != http.NoBody {
			if request.GetBody == nil {
				return nil, xerrors.Errorf("failed to replay request body: GetBody is not set")
			}
			body, err := request.GetBody()
			if err != nil {
				return nil, xerrors.Errorf("failed to replay request body: %w", err)
			}
			attempt = request.Clone(ctx)
			attempt.Body = body
		}

		response, err := t.base().RoundTrip(attempt)

		var retriable bool
		if err != nil {
			retriable = t.Policy != nil && t.Policy.RetryError(err)
		} else {
			retriable = t.Policy != nil && t.Policy.RetryResponse(response)
		}
		if !retriable {
			return response, err
		}

		delay, ok := t.backoff().Delay(retry)
		if !ok {
			return response, err
		}
		if response != nil {
			io.Copy(io.Discard, response.Body)
			response.Body.Close()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) backoff() Backoff {
	if t.Backoff != nil {
		return t.Backoff
	}
	return NoRetry()
}
