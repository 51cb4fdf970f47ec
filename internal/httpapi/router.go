package httpapi

import "net/http"

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{Audits: d.Audits}
	mux.HandleFunc("GET /{$}", hh.Root)
	mux.HandleFunc("GET /health", hh.Health)

	// Audits
	ah := AuditHandler{Audits: d.Audits, Roles: d.Roles, Store: d.Positions}
	mux.HandleFunc("POST /audit/start", ah.Start)
	mux.HandleFunc("GET /audit/supported", ah.Supported)
	mux.HandleFunc("POST /audit/checkOpen", ah.CheckOpen)
	mux.HandleFunc("GET /audit/openRoles", ah.OpenRoles)
	mux.HandleFunc("GET /audit/test", ah.Test)
	mux.HandleFunc("GET /audit/{auditId}/status", ah.Status)
	mux.HandleFunc("POST /audit/{auditId}/cancel", ah.Cancel)

	// Positions
	ph := PositionsHandler{Store: d.Positions, Hub: d.Hub, Now: d.Now}
	mux.HandleFunc("PUT /positions/{positionId}/status", ph.UpdateStatus)

	// Config
	if d.CfgVal != nil {
		ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath}
		mux.HandleFunc("GET /config", ch.Get)
		mux.HandleFunc("GET /config/path", ch.Path)
		mux.HandleFunc("GET /config/validate", ch.Validate)
	}

	// SSE events
	if d.Hub != nil {
		eh := EventsHandler{Hub: d.Hub}
		mux.HandleFunc("GET /events", eh.ServeSSE)
	}

	return mux
}

// Handler wraps h in the standard middleware stack.
func Handler(h http.Handler) http.Handler {
	return Chain(h, RequestID, Recover, AccessLog, Cors)
}
