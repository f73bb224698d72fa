package models

import "time"

// Detection is one object found in a single frame.
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Timestamp  float64    `json:"timestamp"`
}

// DetectionResult is the per-frame reply from the detection service,
// correlated with its submission by FrameID.
type DetectionResult struct {
	FrameID          string      `json:"frame_id"`
	Detections       []Detection `json:"detections"`
	DetectionCount   int         `json:"detection_count"`
	ProcessingTimeMS float64     `json:"processing_time_ms"`
	Timestamp        float64     `json:"timestamp"`
	AnnotatedImage   string      `json:"annotated_image,omitempty"`
}

// FrameSubmission is one captured frame queued for detection. It lives
// only until its DetectionResult arrives or the rate gate drops it.
type FrameSubmission struct {
	FrameID          string
	Payload          string // base64-encoded image, produced by the frame codec
	SubmittedAt      time.Time
	Location         *Location
	IncludeAnnotated bool
}
