package gateway

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"maestro/internal/domain"
)

// wsFrame is one message on the orchestration socket. Steps stream first,
// then a single result frame, then the connection closes.
type wsFrame struct {
	Type   string                      `json:"type"` // "step" or "result"
	Step   *domain.OrchestrationStep   `json:"step,omitempty"`
	Result *domain.OrchestrationResult `json:"result,omitempty"`
}

// stepReplayDelay paces step frames so UIs can render progressively.
const stepReplayDelay = 150 * time.Millisecond

// handleWSOrchestrate upgrades to WebSocket, reads one prompt request,
// and replays the orchestration timeline frame by frame before sending
// the final result.
func (s *Server) handleWSOrchestrate(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "unexpected exit")

	ctx, cancel := context.WithTimeout(r.Context(), s.reqTimeout)
	defer cancel()

	var req promptRequest
	if err := wsjson.Read(ctx, ws, &req); err != nil {
		ws.Close(websocket.StatusUnsupportedData, "invalid request frame")
		return
	}
	if req.UserPrompt == "" {
		ws.Close(websocket.StatusUnsupportedData, "user_prompt is required")
		return
	}

	result := s.orch.Orchestrate(ctx, req.UserPrompt)

	for i := range result.Steps {
		if err := wsjson.Write(ctx, ws, wsFrame{Type: "step", Step: &result.Steps[i]}); err != nil {
			s.logger.Warn("websocket step write failed", "error", err)
			return
		}
		if i < len(result.Steps)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(stepReplayDelay):
			}
		}
	}
	if err := wsjson.Write(ctx, ws, wsFrame{Type: "result", Result: result}); err != nil {
		s.logger.Warn("websocket result write failed", "error", err)
		return
	}

	ws.Close(websocket.StatusNormalClosure, "")
}
