package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

// ServeWebSocket accepts a single control-plane connection over a
// websocket and speaks the same JSON-RPC request/response protocol as
// Serve, one text message per request/response instead of one line.
// This is a secondary transport alongside the primary stdio framing;
// most deployments never need it.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.logIfPresent("controlplane websocket read error", err)
			}
			return
		}

		resp := s.handleLine(data)
		encoded, err := json.Marshal(resp)
		if err != nil {
			encoded, _ = json.Marshal(errResponse(nil, CodeInternalError, fmt.Sprintf("serialization error: %v", err)))
		}
		if err := conn.Write(ctx, websocket.MessageText, encoded); err != nil {
			return
		}
	}
}

func (s *Server) logIfPresent(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, "error", err)
	}
}
