package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/qa"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming websocket message format.
type wsRequest struct {
	Type       string `json:"type"` // "ask" or "ping"
	Query      string `json:"query"`
	DocumentID string `json:"document_id"`
}

// wsResponse is the outgoing websocket message format.
type wsResponse struct {
	Type     string                `json:"type"` // "answer", "pong" or "error"
	Response *answer.QueryResponse `json:"response,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, wsResponse{Type: "error", Error: "invalid message format"})
			continue
		}

		switch req.Type {
		case "ping":
			s.send(conn, wsResponse{Type: "pong"})
		case "ask":
			s.handleAsk(ctx, conn, req)
		default:
			s.send(conn, wsResponse{Type: "error", Error: "unknown message type: " + req.Type})
		}
	}
}

func (s *Server) handleAsk(ctx context.Context, conn *websocket.Conn, req wsRequest) {
	resp, err := s.svc.ProcessQuery(ctx, qa.QueryRequest{Query: req.Query, DocumentID: req.DocumentID})
	if err != nil {
		s.send(conn, wsResponse{Type: "error", Error: err.Error()})
		return
	}
	s.send(conn, wsResponse{Type: "answer", Response: resp})
}

func (s *Server) send(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write", "error", err)
	}
}
