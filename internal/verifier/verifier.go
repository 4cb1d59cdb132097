package verifier

import (
	"context"
	"fmt"
)

// Result is the decoded siteverify reply.
type Result struct {
	Success     bool
	Action      string
	Score       *float64
	Hostname    string
	ChallengeTS string
	ErrorCodes  []string
}

// Verifier checks a single response token against the remote service.
type Verifier interface {
	Verify(ctx context.Context, token, ip string) (Result, error)
}

// TransportError reports that the remote check could not be completed:
// network failure, non-2xx status or an undecodable body. Callers decide
// what a missing answer means; it never says anything about the token.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("siteverify %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("siteverify %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
