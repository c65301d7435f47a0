package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"faceemotion/internal/config"
	"faceemotion/internal/dto"
	"faceemotion/internal/logger"
	"faceemotion/internal/response"
	"faceemotion/internal/service"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var ErrUnknownCommand = response.NewError(http.StatusBadRequest, "unknown command")

const streamWriteTimeout = 10 * time.Second

// streamMessage is sent for every frame received on a stream.
type streamMessage struct {
	SessionID string     `json:"session_id"`
	Sequence  int        `json:"sequence"`
	Command   string     `json:"command"`
	Result    dto.Result `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// StreamHandler runs one command on every frame sent over a WebSocket.
// Binary messages carry encoded image bytes; text messages carry the JSON
// {"image": "<base64>"} body. Each frame is answered with one text message.
func StreamHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("command")
		if name == "" {
			name = "detect_and_classify"
		}
		cmd, ok := LookupCommand(name)
		if !ok {
			writeError(w, r, fmt.Errorf("%w: %q", ErrUnknownCommand, name), logger)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(cfg.MaxUploadBytes())

		sessionID := uuid.NewString()
		logger.Info("Stream %s opened for %s", sessionID, cmd.Name)

		for seq := 1; ; seq++ {
			msgType, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Stream %s closed after %d frame(s)", sessionID, seq-1)
				} else {
					logger.Error("Stream %s disconnected with error: %v", sessionID, err)
				}
				return
			}

			msg := streamMessage{SessionID: sessionID, Sequence: seq, Command: cmd.Name}
			result, err := processFrame(manager, cmd, fmt.Sprintf("%s-%d", sessionID, seq), msgType, data)
			if err != nil {
				code, message := clientMessage(err)
				if code >= 500 {
					logger.Error("Stream %s frame %d failed: %v", sessionID, seq, err)
				} else {
					logger.Warning("Stream %s frame %d rejected: %v", sessionID, seq, err)
				}
				msg.Error = message
			} else {
				msg.Result = result
			}

			out, err := json.Marshal(msg)
			if err != nil {
				logger.Error("Error encoding stream message: %v", err)
				return
			}
			connection.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := connection.WriteMessage(websocket.TextMessage, out); err != nil {
				logger.Error("Stream %s write failed: %v", sessionID, err)
				return
			}
		}
	}
}

func processFrame(manager *service.Manager, cmd Command, requestID string, msgType int, data []byte) (dto.Result, error) {
	if msgType == websocket.TextMessage {
		var req dto.ImageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid JSON frame: %w", err)
		}
		if err := validate.Struct(req); err != nil {
			return nil, ErrMissingImage
		}
		decoded, err := decodeBase64(req.Image)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	return manager.Process(requestID, cmd.Name, img, cmd.Run)
}
