package server

import (
	"net/http"
	"strings"

	"github.com/haasonsaas/frontdesk/internal/voice"
)

// protectedPaths are the webhook routes the gateway signs.
var protectedPaths = []string{voicePath, gatherPath, "/status"}

// verifySignature rejects webhook posts whose X-Twilio-Signature does not
// check out. A nil validator (verification disabled) passes everything
// through.
func (s *Server) verifySignature(next http.Handler) http.Handler {
	if s.validator == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isProtected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sig := r.Header.Get("X-Twilio-Signature")
		if !s.validator.Valid(voice.RequestURL(r), r.PostForm, sig) {
			s.logger.Warn("webhook signature rejected", "path", r.URL.Path)
			http.Error(w, "signature verification failed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isProtected(path string) bool {
	for _, p := range protectedPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
