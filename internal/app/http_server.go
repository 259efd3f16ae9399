package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopq/internal/health"
)

// kpiResponse — ответ /api/v1/kpis: снапшот счётчиков одного scope.
type kpiResponse struct {
	Scope         string    `json:"scope"`
	RevenueMinor  int64     `json:"revenue_minor"`
	OrderCount    int64     `json:"order_count"`
	AvgOrderMinor int64     `json:"average_order_value_minor,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitempty"`
}

// newHTTPHandler собирает ops-роуты: метрики, health checks и read-only API
// поверх metrics ledger.
func newHTTPHandler(ledger domain.MetricsLedger, healthHandler *healthcheck.Handler, logger *log.Entry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/api/v1/kpis", kpisHandler(ledger, logger))
	mux.HandleFunc("/api/v1/leaderboard", leaderboardHandler(ledger, logger))
	return mux
}

// kpisHandler отдаёт снапшот по scope из query-параметра.
// Примеры: ?scope=overall, ?scope=daily:2026-09-01, ?scope=monthly:2026-09.
func kpisHandler(ledger domain.MetricsLedger, logger *log.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		scope := domain.ScopeKey(strings.TrimSpace(r.URL.Query().Get("scope")))
		if scope == "" {
			scope = domain.ScopeOverall
		}

		snap, err := ledger.Snapshot(scope)
		if err != nil {
			logger.WithError(err).WithField("scope", scope.String()).Warn("failed to read kpi snapshot")
			http.Error(w, "failed to read kpi snapshot", http.StatusInternalServerError)
			return
		}

		writeJSON(w, kpiResponse{
			Scope:         scope.String(),
			RevenueMinor:  snap.RevenueMinor,
			OrderCount:    snap.OrderCount,
			AvgOrderMinor: snap.AvgOrderMinor,
			GeneratedAt:   snap.GeneratedAt,
		}, logger)
	}
}

// leaderboardHandler отдаёт снапшот топ-клиентов; ?limit= ограничивает выдачу.
func leaderboardHandler(ledger domain.MetricsLedger, logger *log.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = v
		}

		entries, err := ledger.Leaderboard(limit)
		if err != nil {
			logger.WithError(err).Warn("failed to read leaderboard")
			http.Error(w, "failed to read leaderboard", http.StatusInternalServerError)
			return
		}

		writeJSON(w, entries, logger)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}, logger *log.Entry) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Warn("failed to encode response")
	}
}

// startHTTPServer запускает ops HTTP-сервер и останавливает его по ctx.
func startHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
