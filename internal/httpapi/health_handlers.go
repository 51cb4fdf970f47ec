package httpapi

import "net/http"

type HealthHandler struct {
	Audits AuditService
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"audits": h.Audits.Len(),
	})
}

// Root answers the liveness probe clients hit first.
func (h HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	WriteMessage(w, http.StatusOK, "Server is Running")
}
