package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrCommandFailed      = fmt.Errorf("command rejected by server")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrSongNotFound       = fmt.Errorf("song not found")
	ErrDownloadNotFound   = fmt.Errorf("download not found")

	// Push channel errors
	ErrStreamClosed  = fmt.Errorf("stream closed")
	ErrInvalidEvent  = fmt.Errorf("invalid event payload")
	ErrStreamStatus  = fmt.Errorf("unexpected stream response")
	ErrMaxReconnects = fmt.Errorf("max reconnection attempts reached")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidURL      = fmt.Errorf("invalid YouTube URL")
)
