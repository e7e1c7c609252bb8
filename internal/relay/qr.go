package relay

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/loto/internal/invite"
	"github.com/julienschmidt/httprouter"
)

const (
	defaultQRSize = 320
	maxQRSize     = 1024
)

// serveQR renders the invite URL passed in ?u= as a PNG.
func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	u := r.URL.Query().Get("u")
	if u == "" {
		http.Error(w, "missing u", http.StatusBadRequest)
		return
	}
	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > maxQRSize {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}

	png, err := invite.QR(u, size)
	if err != nil {
		s.logger.Warnf("relay: qr generation failed: %v", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
