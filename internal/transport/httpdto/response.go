package httpdto

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Error codes
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeReceiverMismatch      = "RECEIVER_MISMATCH"
	CodeBundleFull            = "BUNDLE_FULL"
	CodeConflict              = "CONFLICT"
	CodeNotFound              = "NOT_FOUND"
	CodeMaterializationFailed = "MATERIALIZATION_FAILED"
	CodeRateLimited           = "RATE_LIMITED"
	CodeUnavailable           = "SERVICE_UNAVAILABLE"
	CodeUnhealthy             = "UNHEALTHY"
	CodeInternal              = "INTERNAL_ERROR"
)

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}
