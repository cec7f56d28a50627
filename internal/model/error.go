package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeInvalidID        = "INVALID_ID"
	ErrCodeInvalidQuery     = "INVALID_QUERY"
	ErrCodeMissingField     = "MISSING_FIELD"
	ErrCodeEmptyOrder       = "EMPTY_ORDER"
	ErrCodeInvalidQuantity  = "INVALID_QUANTITY"
	ErrCodeInvalidPrice     = "INVALID_PRICE"
	ErrCodeTotalTooLarge    = "TOTAL_TOO_LARGE"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeProductNotFound  = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound    = "ORDER_NOT_FOUND"
	ErrCodeProductInUse     = "PRODUCT_IN_USE"
	ErrCodeGatewayFailure   = "GATEWAY_FAILURE"
	ErrCodeUnauthorised     = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ErrorKind classifies a DomainError for propagation decisions.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindTransport   ErrorKind = "transport"
	KindPersistence ErrorKind = "persistence"
)

// DomainError is an error raised by business logic.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrCustomerRequired = NewDomainError(KindValidation, ErrCodeMissingField, "telegram_user_id is required")
	ErrEmptyOrder       = NewDomainError(KindValidation, ErrCodeEmptyOrder, "Order must contain at least one item")
	ErrInvalidQuantity  = NewDomainError(KindValidation, ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidPrice     = NewDomainError(KindValidation, ErrCodeInvalidPrice, "Price must be between 0 and 99999999.99 with at most 2 decimal places")
	ErrTotalTooLarge    = NewDomainError(KindValidation, ErrCodeTotalTooLarge, "Order total must not exceed 99999999.99")
	ErrStatusMissing    = NewDomainError(KindValidation, ErrCodeMissingField, "Статус не указан")
	ErrInvalidStatus    = NewDomainError(KindValidation, ErrCodeInvalidStatus, "Unknown order status")
	ErrInvalidID        = NewDomainError(KindValidation, ErrCodeInvalidID, "Identifier must be a positive integer")
	ErrProductNotFound  = NewDomainError(KindNotFound, ErrCodeProductNotFound, "One or more products not found")
	ErrOrderNotFound    = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrProductInUse     = NewDomainError(KindPersistence, ErrCodeProductInUse, "Product is referenced by existing orders")
)
