package httpapi

import (
	"crypto/subtle"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// ShutdownHandler lets a local supervisor stop the engine. The caller must be
// on loopback and present the X-Shutdown-Token header. stop runs after the
// response is written.
func ShutdownHandler(token string, stop func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ip := net.ParseIP(host); (ip == nil || !ip.IsLoopback()) && host != "localhost" {
			WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if token == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			WriteError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		log.Infof("[http] shutdown requested request_id=%s", RequestIDFrom(r.Context()))
		WriteMessage(w, http.StatusOK, "shutting down")
		go stop()
	}
}
