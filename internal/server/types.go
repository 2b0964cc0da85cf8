package server

// UploadForm holds the optional form fields sent with a video
type UploadForm struct {
	Album       string `form:"album" binding:"max=256"`
	Artist      string `form:"artist" binding:"max=256"`
	ClipSeconds int    `form:"clip_seconds" binding:"omitempty,min=1,max=86400"`
}

// JobAcceptedResponse is returned when a job is queued
type JobAcceptedResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MessageResponse represents a generic message payload used for success responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents a generic error payload used for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
