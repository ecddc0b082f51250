package handlers

import (
	"net/http"
)

// Probe answers liveness and readiness checks.
type Probe struct {
	service string
	status  string
}

// NewHealthProbe returns the liveness probe.
func NewHealthProbe(service string) *Probe {
	return &Probe{service: service, status: "healthy"}
}

// NewReadyProbe returns the readiness probe.
func NewReadyProbe(service string) *Probe {
	return &Probe{service: service, status: "ready"}
}

func (p *Probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status":  p.status,
		"service": p.service,
	})
}
