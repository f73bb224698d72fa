package detection

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"roadwatch/internal/ingest"
	"roadwatch/internal/logger"
	"roadwatch/internal/metrics"
	"roadwatch/internal/models"
)

// Service runs the websocket detection protocol: it receives frames
// from edge clients, runs them through the detector, answers with the
// results and hands located detections to the ingestor.
type Service struct {
	detector Detector
	ingestor *ingest.Ingestor
	registry *Registry
	metrics  *metrics.Metrics
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewService(
	detector Detector,
	ingestor *ingest.Ingestor,
	registry *Registry,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		detector: detector,
		ingestor: ingestor,
		registry: registry,
		metrics:  m,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Registry exposes the session table for status endpoints.
func (s *Service) Registry() *Registry { return s.registry }

// HandleConnection upgrades the request and serves the session until
// the client disconnects or the transport fails.
func (s *Service) HandleConnection(w http.ResponseWriter, r *http.Request, clientID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Upgrading connection for %s: %v", clientID, err)
		return
	}
	defer conn.Close()

	if _, err := s.registry.Register(clientID); err != nil {
		s.writeJSON(conn, models.ErrorMessage{Type: models.MsgTypeError, Message: err.Error()})
		s.log.Warning("Client %s rejected: %v", clientID, err)
		return
	}
	defer s.registry.Unregister(clientID)

	s.metrics.ActiveSessions.Inc()
	defer s.metrics.ActiveSessions.Dec()

	err = s.writeJSON(conn, models.ConnectedMessage{
		Type:      models.MsgTypeConnected,
		ClientID:  clientID,
		Message:   "connected to detection service",
		ModelInfo: s.detector.ModelInfo(),
	})
	if err != nil {
		s.log.Error("Handshake to %s: %v", clientID, err)
		return
	}
	s.log.Info("Client %s connected (%d active)", clientID, s.registry.Count())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warning("Client %s read error: %v", clientID, err)
			}
			return
		}

		var header models.MessageHeader
		if err := json.Unmarshal(raw, &header); err != nil {
			s.writeJSON(conn, models.ErrorMessage{Type: models.MsgTypeError, Message: "malformed message"})
			continue
		}

		switch header.Type {
		case models.MsgTypeFrame:
			s.handleFrame(conn, clientID, raw)
		case models.MsgTypePing:
			s.writeJSON(conn, models.PongMessage{
				Type:      models.MsgTypePong,
				Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
			})
		case models.MsgTypeDisconnect:
			s.log.Info("Client %s disconnected cleanly", clientID)
			return
		default:
			s.writeJSON(conn, models.ErrorMessage{
				Type:    models.MsgTypeError,
				Message: "unknown message type: " + header.Type,
			})
		}
	}
}

func (s *Service) handleFrame(conn *websocket.Conn, clientID string, raw []byte) {
	var frame models.FrameMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.writeJSON(conn, models.ErrorMessage{Type: models.MsgTypeError, Message: "malformed frame"})
		return
	}

	payload, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		s.writeJSON(conn, models.ErrorMessage{Type: models.MsgTypeError, Message: "frame data is not valid base64"})
		return
	}

	started := time.Now()
	detections, err := s.detector.Detect(payload)
	if err != nil {
		s.log.Error("Client %s: detection on frame %s: %v", clientID, frame.FrameID, err)
		s.writeJSON(conn, models.ErrorMessage{Type: models.MsgTypeError, Message: "detection failed"})
		return
	}
	elapsed := time.Since(started)

	s.registry.CountFrame(clientID)
	s.metrics.FramesProcessed.Inc()

	result := &models.DetectionResult{
		FrameID:          frame.FrameID,
		Detections:       detections,
		DetectionCount:   len(detections),
		ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		Timestamp:        float64(time.Now().UnixNano()) / float64(time.Second),
	}
	s.ingestor.Ingest(result, ingest.SessionContext{
		ClientID: clientID,
		Location: frame.Location,
	})

	s.writeJSON(conn, models.DetectionMessage{
		Type:             models.MsgTypeDetection,
		FrameID:          frame.FrameID,
		Detections:       detections,
		DetectionCount:   len(detections),
		ProcessingTimeMS: result.ProcessingTimeMS,
		Timestamp:        float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

func (s *Service) writeJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.WriteJSON(v); err != nil {
		s.log.Error("Writing websocket message: %v", err)
		return err
	}
	return nil
}
