package services

import "errors"

// Sentinel errors forming the service-level error taxonomy. Handlers map
// these onto HTTP statuses; services wrap them with fmt.Errorf("...: %w", ...)
// so callers check with errors.Is.
var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden is returned on a role or ownership mismatch.
	ErrForbidden = errors.New("not authorized for this record")

	// ErrInvalidInput is returned for missing or malformed required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInquiryConflict is returned when a tenant already has an active
	// inquiry for the property.
	ErrInquiryConflict = errors.New("an active inquiry already exists for this property")

	// ErrPropertyUnavailable is returned when the property is not open for
	// inquiries.
	ErrPropertyUnavailable = errors.New("property is not available")

	// ErrEmailExists is returned when registering with an email that is
	// already taken.
	ErrEmailExists = errors.New("email already in use by another account")
)
