// Package router parses history query parameters and maps service errors to
// HTTP responses.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/core/observability"
	"github.com/vikstrand/aqhistory/internal/history"
	"github.com/vikstrand/aqhistory/internal/history/assemble"
	"github.com/vikstrand/aqhistory/internal/history/remote"
	"github.com/vikstrand/aqhistory/internal/history/validate"
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseRawQuery extracts the raw history query from request parameters.
// Validation happens in the service; this only shapes the input.
func ParseRawQuery(r *http.Request) model.RawQuery {
	q := r.URL.Query()
	raw := model.RawQuery{
		Location:    strings.TrimSpace(q.Get("location")),
		Start:       strings.TrimSpace(q.Get("start")),
		End:         strings.TrimSpace(q.Get("end")),
		Series:      strings.TrimSpace(q.Get("series")),
		Aggregation: strings.TrimSpace(q.Get("aggregation")),
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			raw.PageIndex = &n
		} else {
			bad := -1
			raw.PageIndex = &bad
		}
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			raw.PageSize = &n
		} else {
			bad := 0
			raw.PageSize = &bad
		}
	}
	return raw
}

type fetchResponse struct {
	Points model.Series `json:"points"`
	Count  int          `json:"count"`
}

// HandleFetch serves GET /history.
func HandleFetch(logger *slog.Logger, svc *history.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		series, err := svc.Fetch(r.Context(), ParseRawQuery(r))
		if err != nil {
			writeError(logger, sw, err)
			observability.ObserveHTTP(r.Method, "/history", sw.code, time.Since(start).Seconds())
			return
		}
		if series == nil {
			series = model.Series{}
		}

		sw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(sw).Encode(fetchResponse{Points: series, Count: len(series)})
		observability.ObserveHTTP(r.Method, "/history", sw.code, time.Since(start).Seconds())
	}
}

// HandlePrefetch serves POST /history/prefetch. Always 202: prefetch is
// advisory and errors are only logged.
func HandlePrefetch(logger *slog.Logger, svc *history.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Debug("prefetch requested", "location", r.URL.Query().Get("location"))
		svc.Prefetch(ParseRawQuery(r))
		w.WriteHeader(http.StatusAccepted)
		observability.ObserveHTTP(r.Method, "/history/prefetch", http.StatusAccepted, time.Since(start).Seconds())
	}
}

// HandleInvalidate serves DELETE /history. Accepts either a fingerprint, a
// bare location (drops every range for it), or full query parameters.
func HandleInvalidate(logger *slog.Logger, svc *history.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		var (
			removed int
			err     error
		)
		switch {
		case r.URL.Query().Get("fingerprint") != "":
			removed, err = svc.Invalidate(r.URL.Query().Get("fingerprint"))
		case r.URL.Query().Get("start") == "" && r.URL.Query().Get("end") == "":
			removed, err = svc.InvalidateLocation(r.URL.Query().Get("location"))
		default:
			var fp string
			fp, err = svc.QueryKey(ParseRawQuery(r))
			if err == nil {
				removed, err = svc.Invalidate(fp)
			}
		}
		if err != nil {
			writeError(logger, sw, err)
			observability.ObserveHTTP(r.Method, "/history", sw.code, time.Since(start).Seconds())
			return
		}
		logger.Info("invalidated entries", "removed", removed)

		sw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(sw).Encode(map[string]int{"removed": removed})
		observability.ObserveHTTP(r.Method, "/history", sw.code, time.Since(start).Seconds())
	}
}

// HandleQueryKey serves GET /history/key, exposing the cache identity of a
// query for observability and manual invalidation.
func HandleQueryKey(logger *slog.Logger, svc *history.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		fp, err := svc.QueryKey(ParseRawQuery(r))
		if err != nil {
			writeError(logger, sw, err)
			observability.ObserveHTTP(r.Method, "/history/key", sw.code, time.Since(start).Seconds())
			return
		}

		sw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(sw).Encode(map[string]string{"fingerprint": fp})
		observability.ObserveHTTP(r.Method, "/history/key", sw.code, time.Since(start).Seconds())
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var (
		vErr *validate.ValidationError
		rErr *remote.Error
		aErr *assemble.Error
	)
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
		return
	case errors.As(err, &rErr):
		http.Error(w, rErr.Error(), http.StatusBadGateway)
	case errors.As(err, &aErr):
		http.Error(w, aErr.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request canceled", http.StatusRequestTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
	logger.Warn("history request failed", "err", err)
}
