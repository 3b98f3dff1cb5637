package domain

// Tool result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnsure  = "unsure"
)

// Error codes carried in ToolResult.Code.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeAmbiguous          = "AMBIGUOUS"
	CodeForbidden          = "FORBIDDEN"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeConflictVIN        = "CONFLICT_VIN"
	CodeTimeAlreadyBooked  = "TIME_ALREADY_BOOKED"
	CodeTxnFailed          = "TXN_FAILED"
	CodeDBUnavailable      = "DB_UNAVAILABLE"
)

// ToolResult is the uniform envelope every backend operation returns. It is
// immutable once produced and consumed exactly once by the turn controller.
type ToolResult struct {
	Status  string         `json:"status"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK reports whether the operation succeeded.
func (r ToolResult) OK() bool {
	return r.Status == StatusSuccess
}
