package datajud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
)

// ErrInvalidAlias is returned for aliases that are not a plain index name.
var ErrInvalidAlias = errors.New("invalid alias")

var aliasPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidAlias reports whether alias is a plain lowercase index name.
func ValidAlias(alias string) bool {
	return aliasPattern.MatchString(alias)
}

// StatusError reports an upstream response with status >= 400.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "datajud error"
	}
	return "datajud error: " + e.Body
}

// TransportError reports a failure to obtain any upstream response.
type TransportError struct {
	Alias string
	Err   error
}

func (e *TransportError) Error() string {
	return "datajud unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline being exceeded.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DecodeError reports a successful upstream status carrying a body that is
// not JSON.
type DecodeError struct {
	Alias  string
	Status int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("datajud returned a malformed response (status %d)", e.Status)
}
