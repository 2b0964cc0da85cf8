package server

import "errors"

var (
	ErrMissingFile     = errors.New("no file uploaded")
	ErrNotVideo        = errors.New("uploaded file is not a video")
	ErrUploadTooLarge  = errors.New("upload exceeds size limit")
	ErrJobNotCompleted = errors.New("job is not completed yet")
)
