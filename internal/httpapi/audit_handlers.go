package httpapi

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/audit"
	"jobaudit-engine/internal/domain"
)

const (
	msgNotConnected = "Not connected to Chrome"
	msgConnected    = "Connected to Chrome"
	msgStarted      = "Audit started"
	msgNotFound     = "Audit not found"
	msgCancelled    = "Audit cancelled"
)

type AuditHandler struct {
	Audits AuditService
	Roles  RoleChecker
	Store  PositionStore
}

type startAuditReq struct {
	RemoteURL     string                `json:"remoteUrl"`
	SearchConfigs []domain.SearchConfig `json:"searchConfigs"`
}

type remoteReq struct {
	RemoteURL string `json:"remoteUrl"`
}

type checkOpenReq struct {
	ApplicationURL string `json:"applicationUrl"`
}

// Start accepts an audit and answers with its id before the audit runs.
func (h AuditHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startAuditReq
	if err := decodeJSON(r, &req, false); err != nil {
		WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.Audits.Start(r.Context(), req.RemoteURL, req.SearchConfigs)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, MessageResponse{Message: msgStarted, ID: id})
	case errors.Is(err, audit.ErrNotConnected):
		log.Infof("[http] audit start rejected request_id=%s err=%v", RequestIDFrom(r.Context()), err)
		WriteMessage(w, http.StatusBadRequest, msgNotConnected)
	case errors.Is(err, audit.ErrNoSearchConfigs), errors.Is(err, audit.ErrUnsupportedSource):
		WriteMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, audit.ErrShuttingDown):
		WriteMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Errorf("[http] audit start failed request_id=%s err=%v", RequestIDFrom(r.Context()), err)
		WriteInternal(w, r)
	}
}

// Status returns the record for auditId. A successful result is handed out
// once.
func (h AuditHandler) Status(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.Audits.Status(r.PathValue("auditId"))
	if !ok {
		WriteMessage(w, http.StatusNotFound, msgNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

func (h AuditHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.Audits.Cancel(r.PathValue("auditId"))
	switch {
	case err == nil:
		WriteMessage(w, http.StatusOK, msgCancelled)
	case errors.Is(err, audit.ErrNotFound):
		WriteMessage(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, audit.ErrNotRunning):
		WriteMessage(w, http.StatusConflict, "Audit already completed")
	default:
		WriteInternal(w, r)
	}
}

func (h AuditHandler) Supported(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Audits.Sources())
}

func (h AuditHandler) CheckOpen(w http.ResponseWriter, r *http.Request) {
	var req checkOpenReq
	if err := decodeJSON(r, &req, false); err != nil {
		WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ApplicationURL) == "" {
		WriteMessage(w, http.StatusBadRequest, "applicationUrl is required")
		return
	}

	rc, err := h.Roles.CheckOpen(r.Context(), req.ApplicationURL)
	if err != nil {
		log.Errorf("[http] check open failed request_id=%s url=%s err=%v",
			RequestIDFrom(r.Context()), req.ApplicationURL, err)
		WriteInternal(w, r)
		return
	}
	WriteJSON(w, http.StatusOK, rc)
}

func (h AuditHandler) OpenRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Store.ListOpenRoles(r.Context())
	if err != nil {
		log.Errorf("[http] open roles failed request_id=%s err=%v", RequestIDFrom(r.Context()), err)
		WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, roles)
}

// Test checks the remote browser. The endpoint comes from the JSON body (as
// the route is a GET, clients may also pass ?remoteUrl=).
func (h AuditHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req remoteReq
	if err := decodeJSON(r, &req, true); err != nil {
		WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("remoteUrl")); q != "" {
		req.RemoteURL = q
	}

	if err := h.Audits.TestConnection(r.Context(), req.RemoteURL); err != nil {
		log.Infof("[http] connection test failed request_id=%s err=%v", RequestIDFrom(r.Context()), err)
		WriteMessage(w, http.StatusBadRequest, msgNotConnected)
		return
	}
	WriteMessage(w, http.StatusOK, msgConnected)
}
