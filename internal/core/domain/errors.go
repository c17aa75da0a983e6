// Package domain contains the core business entities for the payment service.
package domain

import "errors"

// Domain errors - represent business rule violations.
var (
	// ErrUnauthenticated is returned when a callback's secret is missing or wrong.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMalformedNotification is returned for callback bodies that do not parse.
	ErrMalformedNotification = errors.New("malformed")

	// ErrIgnoredNotification marks a callback that carries nothing to reconcile.
	ErrIgnoredNotification = errors.New("notification ignored")

	// ErrOrderNotFound is returned when the order store has no such order.
	ErrOrderNotFound = errors.New("unknown order")

	// ErrUnsupportedCurrency is returned for currencies outside the allow-list.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrGatewayNotConfigured is returned when API key or secret is empty.
	ErrGatewayNotConfigured = errors.New("gateway not configured")

	// ErrGatewayDisabled is returned when the gateway is switched off.
	ErrGatewayDisabled = errors.New("gateway disabled")

	// ErrUnknownGateway is returned for gateway ids with no registered processor.
	ErrUnknownGateway = errors.New("unknown gateway")

	// ErrOrderNotPayable is returned when checkout is attempted on a terminal order.
	ErrOrderNotPayable = errors.New("order is not payable")

	// ErrSettingsNotFound is returned by settings stores for unconfigured gateways.
	ErrSettingsNotFound = errors.New("gateway settings not found")

	// ErrProcessorFailure is returned when the processor API fails.
	ErrProcessorFailure = errors.New("payment processor error")

	// ErrStoreFailure is returned when the order or settings store fails.
	ErrStoreFailure = errors.New("store error")
)

// ErrorKind is the outcome class a caller maps to a response.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindValidation     ErrorKind = "validation"
	KindUpstream       ErrorKind = "upstream"
	KindInternal       ErrorKind = "internal"
)

// ServiceError wraps errors with additional context.
type ServiceError struct {
	Kind    ErrorKind
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(kind ErrorKind, err error, message, code string) *ServiceError {
	return &ServiceError{Kind: kind, Err: err, Message: message, Code: code}
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindAuthentication
	case errors.Is(err, ErrMalformedNotification),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrUnsupportedCurrency),
		errors.Is(err, ErrGatewayNotConfigured),
		errors.Is(err, ErrGatewayDisabled),
		errors.Is(err, ErrUnknownGateway),
		errors.Is(err, ErrOrderNotPayable):
		return KindValidation
	case errors.Is(err, ErrProcessorFailure):
		return KindUpstream
	}
	return KindInternal
}

// CodeOf returns the machine-readable code carried by err, if any.
func CodeOf(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Code != "" {
		return svcErr.Code
	}
	return "INTERNAL_ERROR"
}
