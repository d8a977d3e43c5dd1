package callback

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// RetryPolicy decides which outcomes of a delivery attempt are retried.
// The condition names follow envoy's retry_on.
type RetryPolicy struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	statusCodes    []int
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
	}
}

// ParseRetryPolicy reads a comma separated list of "5xx", "gateway-error",
// "connect-failure", "retriable-4xx" and literal status codes.
func ParseRetryPolicy(s string) (*RetryPolicy, error) {
	p := &RetryPolicy{}
	for _, condition := range strings.Split(s, ",") {
		switch condition = strings.TrimSpace(condition); condition {
		case "":
		case "5xx":
			p.serverError = true
		case "gateway-error":
			p.gatewayError = true
		case "connect-failure":
			p.connectFailure = true
		case "retriable-4xx":
			p.retriable4xx = true
		default:
			statusCode, err := strconv.Atoi(condition)
			if err != nil {
				return nil, xerrors.Errorf("invalid retry condition: %s", condition)
			}
			p.statusCodes = append(p.statusCodes, statusCode)
		}
	}
	return p, nil
}

func (p *RetryPolicy) RetryResponse(response *http.Response) bool {
	code := response.StatusCode
	if (p.serverError && code >= 500 && code < 600) ||
		(p.gatewayError && code >= 502 && code < 505) ||
		(p.retriable4xx && code == http.StatusConflict) {
		return true
	}

	for _, c := range p.statusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// RetryError retries temporary network errors and dropped connections.
func (p *RetryPolicy) RetryError(err error) bool {
	if !p.connectFailure && !p.serverError {
		return false
	}
	type temporary interface{ Temporary() bool }
	var terr temporary
	return (errors.As(err, &terr) && terr.Temporary()) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
