package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"
)

// NewServer starts an httptest server and closes it when the test ends.
func NewServer(t TB, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// HelloHandler answers every request with 200 "Hello, World!".
func HelloHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Hello, World!"))
	})
}

// StreamHandler writes n chunks of size bytes each, flushing after every
// chunk and sleeping gap in between.
func StreamHandler(n, size int, gap time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		chunk := []byte(strings.Repeat("x", size))
		for i := 0; i < n; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			if gap > 0 {
				select {
				case <-time.After(gap):
				case <-r.Context().Done():
					return
				}
			}
		}
	})
}

// HangHandler sends nothing until the client goes away or release is closed.
// With headers set it writes the response head first.
func HangHandler(release <-chan struct{}, headers bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headers {
			w.WriteHeader(http.StatusOK)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
}

// StatusHandler answers with code and a short body.
func StatusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, "status %d", code)
	})
}
