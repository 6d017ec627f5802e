package channel

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPHandler serves "POST /channels/{name}" for a set of channels.
type HTTPHandler struct {
	logger   *slog.Logger
	auth     *Authenticator
	channels map[string]*MethodChannel
}

// NewHTTPHandler routes calls to channels by name. When auth is nil callers
// are anonymous and no grants are attached.
func NewHTTPHandler(logger *slog.Logger, auth *Authenticator, channels ...*MethodChannel) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]*MethodChannel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &HTTPHandler{logger: logger, auth: auth, channels: byName}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ch, ok := h.channels[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorEnvelope(CodeBadRequest, "unknown channel: "+name))
		return
	}

	ctx := r.Context()
	if h.auth != nil {
		var err error
		ctx, err = h.auth.Authorize(ctx, bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			h.logger.Info("Rejected unauthenticated call", "channel", name, "error", err)
			h.writeJSON(w, http.StatusUnauthorized, ErrorEnvelope(CodeUnauthenticated, err.Error()))
			return
		}
	}

	call, err := DecodeMethodCall(r.Body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorEnvelope(CodeBadRequest, err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, ch.Invoke(ctx, call))
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}
