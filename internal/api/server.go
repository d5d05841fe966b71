package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rfaria/studydeck/internal/services"
)

// Server wires services into the HTTP surface.
type Server struct {
	ImportService   services.ImportService
	DeckService     services.DeckService
	MaxArchiveBytes int64
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/decks", func(r chi.Router) {
		r.Post("/import", s.handleImport)
		r.Get("/", s.handleListDecks)
		r.Get("/{id}", s.handleGetDeck)
		r.Delete("/{id}", s.handleDeleteDeck)
	})

	return r
}
