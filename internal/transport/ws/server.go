// Package ws serves the host tick feed over websocket.
package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtding233/heelshift/internal/resolve"
	"github.com/xtding233/heelshift/internal/store"
)

type Server struct {
	store    *store.Store
	resolver *resolve.Resolver
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(s *store.Store, r *resolve.Resolver, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		store:    s,
		resolver: r,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // host runs on loopback
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.log.Printf("ws: host connected from %s", r.RemoteAddr)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := decodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case TypeTick:
				var tick TickMsg
				if err := json.Unmarshal(msg, &tick); err != nil {
					continue
				}
				out, err := json.Marshal(s.offsets(tick))
				if err != nil {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
					s.log.Printf("ws: write: %v", err)
					return
				}
			case TypeDespawn:
				var d DespawnMsg
				if err := json.Unmarshal(msg, &d); err != nil {
					continue
				}
				s.store.Revoke(d.EntityID)
			}
		}
		s.log.Printf("ws: host %s disconnected", r.RemoteAddr)
	}
}

func (s *Server) offsets(tick TickMsg) OffsetsMsg {
	results := s.resolver.ResolveAll(tick.Entities)
	out := OffsetsMsg{Type: TypeOffsets, Tick: tick.Tick, Results: make([]OffsetResult, len(results))}
	for i, r := range results {
		out.Results[i] = NewOffsetResult(tick.Entities[i].EntityID, r)
	}
	return out
}
