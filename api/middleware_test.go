package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/showroomlabs/showroom/internal/log"
)

func TestRecoveryMiddleware_Panic(t *testing.T) {
	t.Parallel()

	handler := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), recoveryMiddleware(log.NewNop()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if e := decodeError(t, w.Body); e.Code != "internal_error" {
		t.Errorf("error code = %q, want internal_error", e.Code)
	}
}

func TestRecoveryMiddleware_PanicAfterHeaders(t *testing.T) {
	t.Parallel()

	handler := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic("boom")
	}), recoveryMiddleware(log.NewNop()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	// Headers already went out; the middleware must not try a second write.
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want the already-sent %d", w.Code, http.StatusOK)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	var inContext string
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext, _ = requestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		got := w.Header().Get("X-Request-ID")
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("X-Request-ID = %q, not a UUID", got)
		}
		if inContext != got {
			t.Errorf("context id = %q, header id = %q", inContext, got)
		}
	})

	t.Run("reuses valid", func(t *testing.T) {
		want := uuid.NewString()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", want)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if got := w.Header().Get("X-Request-ID"); got != want {
			t.Errorf("X-Request-ID = %q, want %q", got, want)
		}
	})

	t.Run("replaces invalid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "spoofed\nvalue")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		got := w.Header().Get("X-Request-ID")
		if got == "spoofed\nvalue" {
			t.Fatal("invalid X-Request-ID was passed through")
		}
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("X-Request-ID = %q, not a UUID", got)
		}
	})
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestStatusWriter_DefaultsTo200(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sw := &statusWriter{w: rec}

	if _, err := sw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() unexpected error: %v", err)
	}
	if sw.status != http.StatusOK {
		t.Errorf("status = %d, want %d after an implicit write", sw.status, http.StatusOK)
	}
	if sw.bytesWritten != 5 {
		t.Errorf("bytesWritten = %d, want 5", sw.bytesWritten)
	}
}
