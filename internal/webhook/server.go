// Package webhook поднимает HTTP-сервер платформы: приём событий оплаты
// Telegram Stars, /healthz для оркестратора и /metrics для Prometheus.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server оборачивает http.Server с преднастроенными маршрутами.
type Server struct {
	httpServer *http.Server
}

// New создаёт HTTP-сервер на addr с маршрутами здоровья, метрик и
// вебхука оплат.
func New(addr string, stars *StarsHandler) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/webhook/stars", stars)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start запускает приём входящих HTTP-запросов (блокирующий вызов).
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP-сервер запущен")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Останавливаем HTTP-сервер")
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}
