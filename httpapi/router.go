// Package httpapi exposes the prediction facade and the store's read
// paths over HTTP: thin handlers, a shared error envelope, one file per
// resource.
package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/keiba-predict/engine/prediction"
	"github.com/keiba-predict/engine/store"
)

// Server holds the dependencies every handler needs.
type Server struct {
	store   store.Store
	facade  *prediction.Facade
	limiter *RateLimiter
}

// NewServer builds a Server. requestsPerMinute configures the rate limiter
// in front of POST /predictions/ (config.Config.RateLimitPerMinute).
func NewServer(s store.Store, f *prediction.Facade, requestsPerMinute int) *Server {
	return &Server{
		store:   s,
		facade:  f,
		limiter: NewRateLimiter(requestsPerMinute, time.Minute),
	}
}

// Router builds the chi router for the full HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/races", func(r chi.Router) {
		r.Get("/today", s.handleRacesToday)
		r.Get("/upcoming", s.handleRacesUpcoming)
		r.Get("/date/{date}", s.handleRacesByDate)
		r.Get("/search/name", s.handleRacesSearchName)
		r.Get("/{id}", s.handleRaceByID)
	})

	r.Route("/predictions", func(r chi.Router) {
		r.With(s.limiter.Middleware).Post("/", s.handleCreatePrediction)
		r.Get("/", s.handleListPredictionsByRace)
		r.Get("/{id}", s.handleGetPredictionByID)
	})

	r.Route("/horses", func(r chi.Router) {
		r.Get("/search", s.handleHorseSearch)
		r.Get("/{id}", s.handleGetHorse)
	})

	r.Get("/jockeys/search", s.handleJockeySearch)
	r.Get("/odds/{raceID}", s.handleOdds)

	// Diagnostic-only: exposes the ticket optimizer directly.
	r.Post("/betting/optimize", s.handleBettingOptimize)

	return r
}
