package server

import (
	"encoding/json"
	"net/http"
	"tpa_auth/internal/model"
	"tpa_auth/internal/transport"
	"tpa_auth/internal/utils/log"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type (
	Status struct {
		Algorithm string `json:"algorithm"`
		Served    int64  `json:"sessions_served"`
		Active    bool   `json:"active"`
		Phase     string `json:"phase,omitempty"`
	}
)

// Router serves the admin API.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/status", s.GetStatus()).Methods(http.MethodGet)
	r.HandleFunc("/messages/{peer}", s.GetMessagesOfPeer()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/channel", s.HandleChannelWS()).Methods(http.MethodGet)
	return r
}

func (s *Server) GetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := Status{
			Algorithm: s.alg.String(),
			Served:    s.Served(),
		}
		if engine := s.current.Load(); engine != nil {
			st.Active = true
			st.Phase = engine.Phase().String()
		}
		writeJSON(w, st)
	}
}

func (s *Server) GetMessagesOfPeer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.journal == nil {
			http.Error(w, "message journal is disabled", http.StatusNotFound)
			return
		}

		peer := mux.Vars(r)["peer"]
		messages, err := s.journal.Recent(r.Context(), peer)
		if err != nil {
			log.Error("get messages failed", zap.String("peer", peer), zap.Error(err))
			http.Error(w, "get messages failed", http.StatusInternalServerError)
			return
		}
		if messages == nil {
			messages = []*model.Message{}
		}
		writeJSON(w, messages)
	}
}

// HandleChannelWS upgrades the request and runs a protocol session on it,
// one command per WebSocket message.
func (s *Server) HandleChannelWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		if err := s.ServeChannel(r.Context(), transport.NewWSChannel(conn), r.RemoteAddr, transport.WS); err != nil {
			log.Warn("websocket session ended with error", zap.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "marshal response failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
