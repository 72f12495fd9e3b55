package remote

// UnavailableSourcePath is reported when the upstream source has no file
// path, such as a live capture.
const UnavailableSourcePath = "N/A"

// StatusRequest fetches session status.
type StatusRequest struct{}

// VideoDescriptor summarises an engine.VideoInfo for clients.
type VideoDescriptor struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPSNumerator   uint32  `json:"fps_numerator"`
	FPSDenominator uint32  `json:"fps_denominator"`
	FrameRate      float64 `json:"frame_rate"`
	NumFrames      int     `json:"num_frames"`
	PixelType      string  `json:"pixel_type"`
}

// StatusResponse is the state of the committed script and its delivery.
type StatusResponse struct {
	SessionID              string          `json:"session_id"`
	EngineVersion          string          `json:"engine_version"`
	ScriptPath             string          `json:"script_path"`
	SourcePath             string          `json:"source_path"`
	OutputThreads          int             `json:"output_threads"`
	Source                 VideoDescriptor `json:"source"`
	Script                 VideoDescriptor `json:"script"`
	SourceAvgFrameDuration int64           `json:"source_avg_frame_duration"`
	ScriptAvgFrameDuration int64           `json:"script_avg_frame_duration"`
	SourceAvgFrameRate     int64           `json:"source_avg_frame_rate"`
	ErrorString            string          `json:"error_string,omitempty"`
	DeliveredFrames        int             `json:"delivered_frames"`
	PID                    int             `json:"pid"`
}

// ReloadRequest reloads the script. An empty ScriptPath keeps the current
// script.
type ReloadRequest struct {
	ScriptPath string `json:"script_path"`
}

// ReloadResponse reports the reload result. Script errors are not RPC
// failures: they are rendered into the stream and returned in ErrorString.
type ReloadResponse struct {
	Reloaded    bool   `json:"reloaded"`
	ScriptPath  string `json:"script_path"`
	ErrorString string `json:"error_string,omitempty"`
	Message     string `json:"message,omitempty"`
}
