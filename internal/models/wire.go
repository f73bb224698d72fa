package models

// WebSocket message types exchanged between edge clients and the
// detection service. Every message carries a "type" discriminator;
// receivers peek at it first and then decode the full shape.

const (
	MsgTypeFrame      = "frame"
	MsgTypePing       = "ping"
	MsgTypePong       = "pong"
	MsgTypeDisconnect = "disconnect"
	MsgTypeConnected  = "connected"
	MsgTypeDetection  = "detection"
	MsgTypeError      = "error"
)

// MessageHeader is the minimal shape used to dispatch on "type".
type MessageHeader struct {
	Type string `json:"type"`
}

// FrameMessage submits one encoded frame for detection.
type FrameMessage struct {
	Type             string    `json:"type"`
	Data             string    `json:"data"`
	FrameID          string    `json:"frame_id"`
	Timestamp        float64   `json:"timestamp"`
	IncludeAnnotated bool      `json:"include_annotated"`
	Location         *Location `json:"location,omitempty"`
}

// PingMessage is the client-side liveness probe.
type PingMessage struct {
	Type string `json:"type"`
}

// PongMessage answers a ping.
type PongMessage struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// DisconnectMessage announces an orderly teardown.
type DisconnectMessage struct {
	Type string `json:"type"`
}

// ConnectedMessage is the service handshake after a successful upgrade.
type ConnectedMessage struct {
	Type      string            `json:"type"`
	ClientID  string            `json:"client_id"`
	Message   string            `json:"message,omitempty"`
	ModelInfo map[string]string `json:"model_info,omitempty"`
}

// DetectionMessage carries the detection results for one frame.
type DetectionMessage struct {
	Type              string      `json:"type"`
	FrameID           string      `json:"frame_id"`
	Detections        []Detection `json:"detections"`
	DetectionCount    int         `json:"detection_count"`
	ProcessingTimeMS  float64     `json:"processing_time_ms"`
	Timestamp         float64     `json:"timestamp"`
	AnnotatedImage    string      `json:"annotated_image,omitempty"`
	EncryptedMetadata string      `json:"encrypted_metadata,omitempty"`
	PrivacyProtected  bool        `json:"privacy_protected,omitempty"`
}

// ErrorMessage reports a failure scoped to one request.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
