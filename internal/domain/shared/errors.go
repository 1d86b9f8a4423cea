package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound         = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput     = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState     = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrSequenceConflict = NewDomainError("SEQUENCE_CONFLICT", "Sequence value was modified by another run")
	ErrTransientFetch   = NewDomainError("TRANSIENT_FETCH", "Transient failure fetching from the ILS")
	ErrTransientDeliver = NewDomainError("TRANSIENT_DELIVERY", "Transient failure delivering to the AP dropbox")
	ErrReconcileFailed  = NewDomainError("RECONCILE_FAILED", "Invoice was delivered but could not be marked paid")
)
