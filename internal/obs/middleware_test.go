package obs

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewHTTPMetrics("cartkit", registry)

	r := chi.NewRouter()
	r.Use(HTTPObs{Metrics: metrics}.Middleware)
	r.Delete("/cart/items/{rowId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/items/abc", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodDelete, "/cart/items/{rowId}", "204")))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))

	again := NewHTTPMetrics("cartkit", registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestCartMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCartMetrics("cartkit", registry)
	m.ObserveOperation("add", time.Now(), nil)
	m.ObserveOperation("add", time.Now(), errors.New("x"))
	m.ObserveEvent("cart.added", nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("add", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("add", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("cart.added", "ok")))

	var nilMetrics *CartMetrics
	nilMetrics.ObserveOperation("add", time.Now(), nil)
	nilMetrics.ObserveEvent("cart.added", nil)
}

func TestRequestLoggerWritesSession(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	r := chi.NewRouter()
	r.Use(RequestLogger{Logger: logger}.Middleware)
	r.Get("/cart", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/cart?instance=wishlist", nil)
	req.Header.Set(SessionHeader, "sess-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.Contains(t, out, `"route":"/cart"`)
	require.Contains(t, out, `"cart_session":"sess-1"`)
	require.Contains(t, out, `"cart_instance":"wishlist"`)
	require.Contains(t, out, `"status":200`)
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "nonsense")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}
