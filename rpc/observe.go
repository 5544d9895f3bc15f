package rpc

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alphabill-org/guardian-core/logger"
	"github.com/alphabill-org/guardian-core/observability"
)

/*
instrumentHTTP returns http middleware which instruments the incoming handler with two metrics:
  - number of calls: how many times the endpoint has been called;
  - request duration: how long it took to serve the request.
*/
func instrumentHTTP(reg prometheus.Registerer, log *slog.Logger) (func(next http.Handler) http.Handler, error) {
	callCnt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: observability.Namespace,
		Subsystem: metricsSubsystemRESTAPI,
		Name:      "calls_total",
		Help:      "How many times the endpoint has been called",
	}, []string{"route", "status"})
	callDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: observability.Namespace,
		Subsystem: metricsSubsystemRESTAPI,
		Name:      "duration_seconds",
		Help:      "How long it took to serve the request",
		Buckets:   []float64{100e-6, 200e-6, 400e-6, 800e-6, 0.0016, 0.01, 0.05, 0.1},
	}, []string{"route", "status"})

	var err error
	if callCnt, err = observability.Register(reg, callCnt); err != nil {
		return nil, fmt.Errorf("registering calls counter: %w", err)
	}
	if callDur, err = observability.Register(reg, callDur); err != nil {
		return nil, fmt.Errorf("registering duration histogram: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			route := "unknown"
			if path, err := mux.CurrentRoute(req).GetPathTemplate(); err != nil {
				log.WarnContext(req.Context(), "reading route path", logger.Error(err))
			} else {
				route = path
			}

			start := time.Now()
			rsp := newStatusResponseWriter(w)
			next.ServeHTTP(rsp, req)

			status := strconv.Itoa(rsp.statusCode)
			callCnt.WithLabelValues(route, status).Inc()
			callDur.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
		})
	}, nil
}

/*
statusResponseWriter is a http.ResponseWriter wrapper which allows to capture
status code of the response.
https://www.alexedwards.net/blog/how-to-use-the-http-responsecontroller-type
*/
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (mw *statusResponseWriter) WriteHeader(statusCode int) {
	mw.ResponseWriter.WriteHeader(statusCode)

	if !mw.headerWritten {
		mw.statusCode = statusCode
		mw.headerWritten = true
	}
}

func (mw *statusResponseWriter) Write(b []byte) (int, error) {
	mw.headerWritten = true
	return mw.ResponseWriter.Write(b)
}

func (mw *statusResponseWriter) Unwrap() http.ResponseWriter {
	return mw.ResponseWriter
}
