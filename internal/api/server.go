package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"warfront/internal/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The ops surface is same-host tooling; origin checks are relaxed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server is the ops HTTP surface over a running movement core.
type Server struct {
	core *game.Core
	log  *logrus.Logger
}

// NewServer wraps the core.
func NewServer(core *game.Core, log *logrus.Logger) *Server {
	return &Server{core: core, log: log}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/state", s.handleState)
	r.Get("/ws", s.handleWS)
	r.Get("/debug/field.png", s.handleFieldPNG)
	return r
}

// Listen serves the router until the process exits.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.WithField("addr", addr).Info("ops server listening")
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"agents": s.core.AgentCount(),
	})
}

// agentStateJSON is the wire shape of one agent in state responses.
type agentStateJSON struct {
	UID      uint32  `json:"uid"`
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	VX       float64 `json:"vx"`
	VZ       float64 `json:"vz"`
	State    string  `json:"state"`
	Blocking bool    `json:"blocking"`
}

func (s *Server) stateJSON() []agentStateJSON {
	snap := s.core.QuerySnapshot()
	out := make([]agentStateJSON, 0, len(snap))
	for uid, q := range snap {
		out = append(out, agentStateJSON{
			UID:      uid,
			X:        q.Pos.X,
			Z:        q.Pos.Z,
			VX:       q.Velocity.X,
			VZ:       q.Velocity.Z,
			State:    q.State.String(),
			Blocking: q.Blocking,
		})
	}
	return out
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stateJSON())
}

// handleWS streams the simulation state at 10 Hz until the client goes
// away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("ws upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(s.stateJSON()); err != nil {
			return
		}
	}
}
