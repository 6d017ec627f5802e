package channel

import (
	"log/slog"
	"sync"
)

const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusNotImplemented = "notImplemented"
)

// Codes the channel itself reports.
const (
	CodeInternal        = "INTERNAL"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadRequest      = "BAD_REQUEST"
)

// Result receives the outcome of one method call. Only the first reply
// counts.
type Result interface {
	Success(result any)
	Error(code, message string, details any)
	NotImplemented()
}

// Envelope is the wire form of a call outcome.
type Envelope struct {
	Status  string `json:"status"`
	Result  any    `json:"result,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func ErrorEnvelope(code, message string) Envelope {
	return Envelope{Status: StatusError, Code: code, Message: message}
}

// reply is a single-use Result.
type reply struct {
	logger *slog.Logger
	method string

	mu       sync.Mutex
	replied  bool
	envelope Envelope
}

func newReply(method string, logger *slog.Logger) *reply {
	return &reply{method: method, logger: logger}
}

func (r *reply) Success(result any) {
	r.set(Envelope{Status: StatusSuccess, Result: result})
}

func (r *reply) Error(code, message string, details any) {
	r.set(Envelope{Status: StatusError, Code: code, Message: message, Details: details})
}

func (r *reply) NotImplemented() {
	r.set(Envelope{Status: StatusNotImplemented})
}

func (r *reply) set(env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replied {
		r.logger.Warn("Ignoring duplicate reply", "method", r.method, "status", env.Status)
		return
	}
	r.envelope = env
	r.replied = true
}

func (r *reply) result() (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envelope, r.replied
}
