package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// ErrInsufficientStock rejects an order line exceeding available stock.
var ErrInsufficientStock = fmt.Errorf("gateway: %w: insufficient stock", httpx.ErrConflict)

// Error is a non-2xx response from the upstream service.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("gateway: %s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Unwrap classifies the status so callers can use errors.Is with the httpx
// sentinels.
func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return httpx.ErrNotFound
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return httpx.ErrValidation
	case e.Status == http.StatusConflict:
		return httpx.ErrConflict
	default:
		return httpx.ErrUnavailable
	}
}

// IsStatus reports whether err is an upstream Error with the given status.
func IsStatus(err error, status int) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Status == status
}
