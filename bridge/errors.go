package bridge

// Error codes reported to channel callers.
const (
	CodeInvalidArgs      = "INVALID_ARGS"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeSendFailed       = "SEND_FAILED"
)

const (
	msgInvalidArgs      = "Phone or message missing"
	msgPermissionDenied = "SEND_SMS permission not granted at native level"
)

// Error is a failure reported to the caller of SendSms.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func sendFailed(err error) *Error {
	return &Error{Code: CodeSendFailed, Message: err.Error()}
}
