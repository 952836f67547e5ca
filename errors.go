package ddnsd

import "github.com/pkg/errors"

// Sentinel errors for the collaborator contracts. Implementations wrap
// these so callers can classify failures with errors.Is.
var (
	// ErrInterfaceNotFound means the underlying network interface could
	// not be located.
	ErrInterfaceNotFound = errors.New("interface not found")

	// ErrNoAddress means no address of the requested family currently
	// qualifies (for example none are globally routable).
	ErrNoAddress = errors.New("no usable address")

	// ErrProviderUnavailable covers transport-level provider failures.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected covers requests the provider refused, such as
	// a missing zone or an invalid record.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrDeliveryFailed is returned by notifiers; it is logged per
	// notifier and never fails the cycle.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)
