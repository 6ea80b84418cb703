package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"

	"pisense/sampling"
)

const shutdownTimeout = 5 * time.Second

// Server is the peripheral controller: a JSON API over the board's sensors,
// LED and camera.
type Server struct {
	router   chi.Router
	readings *Readings
	led      *LED
	camera   Camera
	metrics  *Metrics
	port     int
	log      zerolog.Logger
}

// NewServer returns a server for port with its routes registered.
func NewServer(port int, readings *Readings, led *LED, cam Camera, m *Metrics, log zerolog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		readings: readings,
		led:      led,
		camera:   cam,
		metrics:  m,
		port:     port,
		log:      log.With().Str("component", "http").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/distance", s.handleDistance)
		r.Get("/gas", s.handleGas)
		r.Get("/bme280", s.handleBME280)
		r.Get("/status", s.handleStatus)
		r.Post("/capture", s.handleCapture)
		r.Get("/led", s.handleLEDStatus)
		r.Post("/led/{state}", s.handleLEDSet)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.port).Msg("starting to listen for connections")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "pisense peripheral controller",
		"endpoints": []string{
			"GET /api/distance",
			"GET /api/gas",
			"GET /api/bme280",
			"GET /api/status",
			"POST /api/capture",
			"GET /api/led",
			"POST /api/led/on",
			"POST /api/led/off",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	d, err := s.readings.Distance()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"distance_cm": round(float64(d), 2)})
}

type gasResponse struct {
	Raw          float64 `json:"raw"`
	Voltage      float64 `json:"voltage"`
	LevelPercent float64 `json:"level_percent"`
	Status       string  `json:"status"`
}

func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	g, err := s.readings.Gas()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gasResponse{
		Raw:          round(g.AverageRaw, 2),
		Voltage:      round(g.Voltage, 2),
		LevelPercent: round(g.Percentage, 1),
		Status:       gasStatus(g.Percentage),
	})
}

type envResponse struct {
	TemperatureC    float64 `json:"temperature_c"`
	TemperatureF    float64 `json:"temperature_f"`
	PressureHPa     float64 `json:"pressure_hpa"`
	HumidityPercent float64 `json:"humidity_percent"`
}

func (s *Server) handleBME280(w http.ResponseWriter, r *http.Request) {
	e, err := s.readings.Environment()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envResponse{
		TemperatureC:    round(e.TemperatureC, 2),
		TemperatureF:    round(e.TemperatureF, 2),
		PressureHPa:     round(e.PressureHPa, 2),
		HumidityPercent: round(e.HumidityPercent, 2),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.readings.Status()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	path, err := s.camera.Capture(r.Context(), "manual_capture")
	s.metrics.observeCapture(err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("file", path).Msg("manual capture")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "image captured",
		"file":    filepath.Base(path),
	})
}

func (s *Server) handleLEDStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": s.led.Status()})
}

func (s *Server) handleLEDSet(w http.ResponseWriter, r *http.Request) {
	var on bool
	switch chi.URLParam(r, "state") {
	case "on":
		on = true
	case "off":
	default:
		http.NotFound(w, r)
		return
	}
	if err := s.led.Set(on); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": s.led.Status()})
}

// statusFor maps a reading error to an HTTP status.
func statusFor(err error) int {
	switch {
	case sampling.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, sampling.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	s.log.Warn().Err(err).Int("status", code).Msg("request failed")
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
