package remote

import (
	"errors"
	"os"

	"synthfilter/internal/bridge"
	"synthfilter/internal/delivery"
	"synthfilter/internal/engine"
)

// Controller is the session a Server controls.
type Controller interface {
	Status() StatusResponse
	Reload(scriptPath string) ReloadResponse
}

// SessionController adapts a bridge.Handle and the delivery session driving
// it to Controller.
type SessionController struct {
	Handle  *bridge.Handle
	Session *delivery.Session
	// SourcePath is the upstream file, if any.
	SourcePath string
}

func describe(vi engine.VideoInfo) VideoDescriptor {
	return VideoDescriptor{
		Width:          vi.Width,
		Height:         vi.Height,
		FPSNumerator:   vi.FPSNumerator,
		FPSDenominator: vi.FPSDenominator,
		FrameRate:      vi.FrameRate(),
		NumFrames:      vi.NumFrames,
		PixelType:      string(vi.PixelType),
	}
}

// Status snapshots the handle.
func (c *SessionController) Status() StatusResponse {
	h := c.Handle
	figures := h.Figures()
	errText, _ := h.ErrorString()
	source := c.SourcePath
	if source == "" {
		source = UnavailableSourcePath
	}
	resp := StatusResponse{
		SessionID:              h.SessionID(),
		EngineVersion:          h.Version(),
		ScriptPath:             h.ScriptPath(),
		SourcePath:             source,
		OutputThreads:          h.OutputThreads(),
		Source:                 describe(h.SourceInfo()),
		Script:                 describe(h.ScriptInfo()),
		SourceAvgFrameDuration: figures.SourceAvgFrameDuration,
		ScriptAvgFrameDuration: figures.ScriptAvgFrameDuration,
		SourceAvgFrameRate:     figures.SourceAvgFrameRate,
		ErrorString:            errText,
		PID:                    os.Getpid(),
	}
	if c.Session != nil {
		resp.DeliveredFrames = c.Session.Next()
	}
	return resp
}

// Reload switches to scriptPath when given and reloads with disconnects
// ignored, so a script that disconnects falls back to passthrough.
func (c *SessionController) Reload(scriptPath string) ReloadResponse {
	if scriptPath != "" {
		c.Handle.SetScriptPath(scriptPath)
	}
	var err error
	if c.Session != nil {
		err = c.Session.Reload(true)
	} else {
		err = errors.New("no delivery session attached")
	}
	resp := ReloadResponse{Reloaded: err == nil, ScriptPath: c.Handle.ScriptPath()}
	resp.ErrorString, _ = c.Handle.ErrorString()
	if err != nil {
		resp.Message = err.Error()
	}
	return resp
}
