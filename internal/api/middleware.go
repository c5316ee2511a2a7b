package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Koalla18/TakeSmart/internal/api/httpx"
	"github.com/Koalla18/TakeSmart/internal/cacheaside"
	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
	"github.com/Koalla18/TakeSmart/internal/observability"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code and body size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// instrument assigns the request id, then records metrics and an access log
// line once the response is written.
func instrument(access *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		st := &httpx.RequestState{}
		ctx := logging.WithRequestID(r.Context(), id)
		ctx = httpx.WithState(ctx, st)

		metrics.IncActiveRequests()
		defer metrics.DecActiveRequests()

		rw := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rw, r.WithContext(ctx))
		if rw.status == 0 {
			rw.status = http.StatusOK
		}

		elapsed := time.Since(start)
		route := st.Route
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Method, route, rw.status, elapsed)

		if access == nil {
			return
		}
		entry := &logging.RequestLog{
			Timestamp:   start,
			RequestID:   id,
			TraceID:     st.TraceID,
			Method:      r.Method,
			Path:        r.URL.Path,
			Status:      rw.status,
			DurationMs:  elapsed.Milliseconds(),
			Bytes:       rw.bytes,
			Invalidated: st.Invalidated,
		}
		if st.Err != nil {
			entry.Error = st.Err.Error()
		}
		access.Log(entry)
	})
}

// captureRoute copies the ServeMux pattern of the routed request and the
// active trace id into the request state.
func captureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if st := httpx.State(r.Context()); st != nil {
			st.Route = r.Pattern
			st.TraceID = observability.GetTraceID(r.Context())
		}
	})
}

// bufferedWriter holds the response back until the sweep has run, so the
// client never observes a write before its cache entries are gone.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (bw *bufferedWriter) Header() http.Header { return bw.header }

func (bw *bufferedWriter) WriteHeader(code int) {
	if bw.status == 0 {
		bw.status = code
	}
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if bw.status == 0 {
		bw.status = http.StatusOK
	}
	return bw.body.Write(b)
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// InvalidateOnMutation purges the cache families of a catalog namespace after
// every successful mutating request under it, before the response is sent.
// It runs in addition to the per-entity invalidation done by the store.
func InvalidateOnMutation(coord *cacheaside.Coordinator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutation(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		prefixes, ok := cachekey.PrefixesForPath(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		bw := &bufferedWriter{header: w.Header()}
		next.ServeHTTP(bw, r)
		if bw.status == 0 {
			bw.status = http.StatusOK
		}

		if bw.status >= 200 && bw.status < 300 {
			coord.Invalidate(r.Context(), prefixes...)
			if st := httpx.State(r.Context()); st != nil {
				st.Invalidated = prefixes
			}
		}

		w.WriteHeader(bw.status)
		if bw.body.Len() > 0 {
			if _, err := w.Write(bw.body.Bytes()); err != nil {
				logging.FromContext(r.Context()).Debug("write response", "error", err)
			}
		}
	})
}
