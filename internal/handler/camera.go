package handler

import (
	"encoding/base64"
	"net/http"
	"strings"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/logger"
	"pillscout/internal/model"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CameraWebsocketHandler accepts captured frames from the browser camera.
// Each binary message is one JPEG or PNG frame; a text message may carry
// the same frame as a base64 data URL. Frames are analyzed one at a time
// and every frame gets exactly one JSON reply.
func CameraWebsocketHandler(analyzer Analyzer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		connection.SetReadLimit(cfg.MaxUploadSize)
		logger.Info("Camera connected from %s", r.RemoteAddr)

		for {
			messageType, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Camera disconnected normally")
				} else {
					logger.Warning("Camera disconnected with error: %v", err)
				}
				return
			}

			if messageType == websocket.TextMessage {
				data, err = decodeDataURL(string(data))
				if err != nil {
					connection.WriteJSON(dto.ErrorResponse{Code: CodeInvalidRequest, Message: "Frame is not valid base64"})
					continue
				}
			}

			result, err := analyzer.Analyze(r.Context(), data, model.SourceCamera)
			if err != nil {
				status, body := classifyError(err)
				if status >= http.StatusInternalServerError {
					logger.Error("Camera frame analysis failed: %v", err)
				}
				if werr := connection.WriteJSON(body); werr != nil {
					logger.Error("Error writing to camera socket: %v", werr)
					return
				}
				continue
			}

			if err := connection.WriteJSON(result); err != nil {
				logger.Error("Error writing to camera socket: %v", err)
				return
			}
		}
	}
}

// decodeDataURL accepts "data:image/jpeg;base64,..." or bare base64.
func decodeDataURL(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
