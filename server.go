package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"i4.energy/across/smsbridge/telephony"
)

// Server routes HTTP requests to the method channels and reports the
// health of the telephony host
type Server struct {
	Logger   *slog.Logger
	Host     *telephony.Host
	Channels http.Handler
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.Handle("POST /channels/{name}", s.Channels)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.ServeHTTP(w, r)
}

type subscriptionStatus struct {
	SubscriptionID int    `json:"subscriptionId"`
	SimSlot        int    `json:"simSlot"`
	DisplayName    string `json:"displayName"`
}

type healthResponse struct {
	Status        string               `json:"status"`
	Subscriptions []subscriptionStatus `json:"subscriptions"`
	Error         string               `json:"error,omitempty"`
}

// handleHealth reports the subscriptions whose SIM is ready. The service is
// unhealthy when none is.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Subscriptions: []subscriptionStatus{}}
	status := http.StatusOK

	subs, err := s.Host.ActiveSubscriptionInfoList(r.Context())
	for _, sub := range subs {
		resp.Subscriptions = append(resp.Subscriptions, subscriptionStatus{
			SubscriptionID: sub.SubscriptionID,
			SimSlot:        sub.SimSlotIndex,
			DisplayName:    sub.DisplayName,
		})
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if len(subs) == 0 {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.Logger.Error("Failed to write health response", "error", err)
	}
}
