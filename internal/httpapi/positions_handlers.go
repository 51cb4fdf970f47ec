package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/events"
	"jobaudit-engine/internal/store"
)

type PositionsHandler struct {
	Store PositionStore
	Hub   *events.Hub
	Now   func() time.Time
}

type updateStatusReq struct {
	Status string `json:"status"`
}

type positionResponse struct {
	Message string          `json:"message"`
	Data    domain.Position `json:"data"`
}

func (h PositionsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("positionId"))

	var req updateStatusReq
	if err := decodeJSON(r, &req, false); err != nil {
		WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	status := strings.TrimSpace(req.Status)
	if !store.ValidStatusUpdate(status) {
		WriteMessage(w, http.StatusBadRequest, `status must be "open" or "closed"`)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	p, err := h.Store.UpdatePositionStatus(r.Context(), id, status, now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteMessage(w, http.StatusNotFound, "Position not found")
		return
	case err != nil:
		log.Errorf("[http] update position failed request_id=%s id=%s err=%v", RequestIDFrom(r.Context()), id, err)
		WriteInternal(w, r)
		return
	}

	if h.Hub != nil {
		h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.TypePositionUpdated, 1,
			map[string]any{"id": p.ID, "status": p.Status}))
	}
	WriteJSON(w, http.StatusOK, positionResponse{Message: "Position status updated successfully", Data: p})
}
