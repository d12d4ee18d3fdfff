package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleCrawlEvents upgrades the connection and streams one crawl's
// progress events as they're published, an alternative to polling
// handleCrawlStatus. Unlike the teacher's WebSocketHandler, which fans a
// handful of global broadcast types out to every connected client, this
// subscribes to exactly one job ID and closes when that subscription
// closes - each crawl's stream is its own connection, not a shared bus.
func (s *Server) handleCrawlEvents(w http.ResponseWriter, r *http.Request) {
	crawlID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/crawl/"), "/events")
	if crawlID == "" {
		http.Error(w, "missing crawl id", http.StatusBadRequest)
		return
	}
	if _, err := s.app.Controller.Status(crawlID); err != nil {
		http.Error(w, "crawl not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.app.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.app.Events.Subscribe(crawlID)
	defer unsubscribe()

	for event := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			return
		}
		if event.Status == "completed" || event.Status == "cancelled" || event.Status == "failed" {
			return
		}
	}
}
