package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouteOptions struct {
	WSPath    string
	ProbePath string
}

func SetupRoutes(h *Hub, opts RouteOptions, log *zap.Logger) http.Handler {
	if opts.WSPath == "" {
		opts.WSPath = "/ws"
	}
	if opts.ProbePath == "" {
		opts.ProbePath = "/reconnect"
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Public routes
	r.Get("/", Healthz)
	r.Get("/healthz", Healthz)
	r.Get(opts.ProbePath, Healthz)
	r.Get(opts.WSPath, WSHandler(h, log.Named("ws")))
	r.Post("/chat", PostChat(h))
	r.Post("/connect", SetConnection(h, true))
	r.Delete("/connect", SetConnection(h, false))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// PostChat feeds {"message": "..."} to the combo tracker.
func PostChat(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := h.Send(ChatLine{Text: body.Message}); err != nil {
			http.Error(w, "server stopping", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func SetConnection(h *Hub, connected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Send(SetConnected{Connected: connected}); err != nil {
			http.Error(w, "server stopping", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
