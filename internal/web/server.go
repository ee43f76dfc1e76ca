// Package web exposes a small read-only JSON surface: queue status, per-yacht
// availability and conflict checks. It never mutates state.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/example/charter-desk/internal/domain/booking"
	"github.com/example/charter-desk/internal/domain/fleet"
	"github.com/example/charter-desk/internal/queue"
	"github.com/example/charter-desk/internal/store"
)

type Server struct {
	Store *store.Manager
	Queue *queue.Queue
	Fleet *fleet.Registry
	Log   *logrus.Logger
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.HandleFunc("/api/queue/status", s.handleQueueStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/yachts", s.handleYachts).Methods(http.MethodGet)
	r.HandleFunc("/api/yachts/{id}/availability", s.handleAvailability).Methods(http.MethodGet)
	r.HandleFunc("/api/yachts/{id}/slots", s.handleSlots).Methods(http.MethodGet)
	return r
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.Queue.Snapshot())
}

func (s *Server) handleYachts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.Fleet.All())
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.Fleet.Get(id); !ok {
		http.Error(w, "unknown yacht", http.StatusNotFound)
		return
	}
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, booking.RangeAvailability(start, end, id, s.Store.All()))
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.Fleet.Get(id); !ok {
		http.Error(w, "unknown yacht", http.StatusNotFound)
		return
	}
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}
	minDays := 1
	if v := r.URL.Query().Get("min_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid min_days", http.StatusBadRequest)
			return
		}
		minDays = n
	}
	slots := booking.FindAvailableSlots(id, s.Store.All(), booking.SlotOptions{
		MinDays: minDays,
		MaxDays: 365,
		From:    start,
		Before:  end,
	})
	s.writeJSON(w, slots)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.WithError(err).Error("web: encode response")
	}
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	const layout = "2006-01-02"
	start, err := time.Parse(layout, r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "invalid or missing start (YYYY-MM-DD)", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(layout, r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "invalid or missing end (YYYY-MM-DD)", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}
