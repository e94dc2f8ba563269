package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
)

// HeaderIdempotencyKey lets clients retry a write without recording it twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// storedResponse is the first outcome for a key. done closes once it is
// filled in.
type storedResponse struct {
	done   chan struct{}
	status int
	header http.Header
	body   []byte
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// idempotent replays the stored response when a key is reused by the same
// user on the same route. Concurrent duplicates wait for the first request.
// Server errors are not remembered so the client can retry.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > 255 {
			writeError(w, r, http.StatusUnprocessableEntity, "idempotency key too long (max 255 characters)", nil)
			return
		}

		cacheKey := fmt.Sprintf("%d|%s|%s", userID(r), r.URL.Path, key)
		entry, stored := s.idempotency.SetIfAbsent(cacheKey, &storedResponse{done: make(chan struct{})})
		if !stored {
			select {
			case <-entry.done:
			case <-r.Context().Done():
				return
			}
			if entry.status == 0 {
				writeError(w, r, http.StatusConflict, "a request with this idempotency key failed, retry it", nil)
				return
			}
			for k, v := range entry.header {
				w.Header()[k] = v
			}
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(entry.status)
			_, _ = w.Write(entry.body)
			return
		}

		cw := &captureWriter{ResponseWriter: w}
		defer func() {
			if cw.status >= 500 || cw.status == 0 {
				s.idempotency.Delete(cacheKey)
			} else {
				entry.status = cw.status
				entry.header = http.Header{"Content-Type": {w.Header().Get("Content-Type")}}
				entry.body = cw.body.Bytes()
			}
			close(entry.done)
		}()
		next.ServeHTTP(cw, r)
	})
}
