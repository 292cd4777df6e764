package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"voiceagent/config"
	"voiceagent/core"
	"voiceagent/factories"
	"voiceagent/pipeline"
	"voiceagent/utils/audio"
)

// MaxUploadBytes bounds audio uploads.
const MaxUploadBytes = 16 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".webm": true,
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
}

// Server is the HTTP surface over the pipeline runtime.
type Server struct {
	echo    *echo.Echo
	runtime *factories.Runtime
	cfg     config.Config
	logger  *core.Logger
}

// New builds the server and registers all routes.
func New(cfg config.Config, rt *factories.Runtime, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &SonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, runtime: rt, cfg: cfg, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/api/health", s.handleHealth)
	s.echo.POST("/api/tts", s.handleTTS)
	s.echo.POST("/api/transcribe", s.handleTranscribe)
	s.echo.POST("/llm/query", s.handleQuery)
	s.echo.GET("/api/chat/history/:session_id", s.handleHistory)
	s.echo.DELETE("/api/chat/history/:session_id", s.handleClear)
	s.echo.GET("/api/chat/stats", s.handleStats)
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
}

func errorJSON(c echo.Context, status int, kind core.ErrorKind, message string) error {
	return c.JSON(status, errorResponse{Error: message, ErrorKind: string(kind)})
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	report := s.runtime.Orchestrator.Health(ctx)
	status := "ok"
	if !report.Healthy() {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       status,
		"services":     report,
		"missing_keys": s.cfg.MissingKeys(),
	})
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Speed   int    `json:"speed"`
	Pitch   int    `json:"pitch"`
}

func (s *Server) handleTTS(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, core.ValidationError, "invalid request body")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return errorJSON(c, http.StatusBadRequest, core.ValidationError, "text cannot be empty")
	}
	if len(text) > core.MaxSynthesisTextLength {
		return errorJSON(c, http.StatusBadRequest, core.ValidationError,
			fmt.Sprintf("text too long (max %d characters)", core.MaxSynthesisTextLength))
	}

	voice := core.VoiceParams{VoiceID: req.VoiceID, Speed: req.Speed, Pitch: req.Pitch}
	if err := voice.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, core.KindOf(err), err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.runtime.Policy.TTSTimeout)
	defer cancel()

	result, err := s.runtime.TTS.Synthesize(ctx, core.SynthesisRequest{Text: text, Voice: voice})
	if err != nil {
		s.logger.Error("direct synthesis failed", "error", err.Error())
		return errorJSON(c, http.StatusBadGateway, core.KindOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"audio_url":          result.AudioRef(),
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
	})
}

func (s *Server) handleTranscribe(c echo.Context) error {
	payload, mimeType, errMsg := s.readAudioUpload(c)
	if errMsg != "" {
		return errorJSON(c, http.StatusBadRequest, core.ValidationError, errMsg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.runtime.Policy.STTTimeout)
	defer cancel()

	result, err := s.runtime.STT.Transcribe(ctx, core.TranscriptionRequest{Audio: payload, MimeType: mimeType})
	if err != nil {
		s.logger.Error("direct transcription failed", "error", err.Error())
		return errorJSON(c, http.StatusBadGateway, core.KindOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

type queryRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	VoiceID   string `json:"voice_id"`
	Speed     int    `json:"speed"`
	Pitch     int    `json:"pitch"`
}

// handleQuery runs the full pipeline: voice when an audio file is attached,
// text otherwise. The response is always the tagged pipeline result.
func (s *Server) handleQuery(c echo.Context) error {
	in := pipeline.Input{}

	if _, err := c.FormFile("audio"); err == nil {
		payload, mimeType, errMsg := s.readAudioUpload(c)
		if errMsg != "" {
			return errorJSON(c, http.StatusBadRequest, core.ValidationError, errMsg)
		}
		in.Audio = payload
		in.MimeType = mimeType
		in.SessionID = c.FormValue("session_id")
		in.Voice = voiceFromForm(c)
	} else if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var req queryRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, core.ValidationError, "invalid request body")
		}
		in.Text = req.Text
		in.SessionID = req.SessionID
		in.Voice = core.VoiceParams{VoiceID: req.VoiceID, Speed: req.Speed, Pitch: req.Pitch}
	} else {
		in.Text = c.FormValue("text")
		in.SessionID = c.FormValue("session_id")
		in.Voice = voiceFromForm(c)
	}

	result := s.runtime.Orchestrator.Run(c.Request().Context(), in)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	sess, err := s.runtime.Store.GetOrCreate(c.Request().Context(), sessionID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, core.InternalError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id":    sess.ID,
		"messages":      sess.Messages,
		"message_count": sess.MessageCount,
	})
}

func (s *Server) handleClear(c echo.Context) error {
	existed, err := s.runtime.Store.Clear(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, core.InternalError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"cleared": existed})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.runtime.Store.Stats(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, core.InternalError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// readAudioUpload validates and reads the multipart "audio" file. A non-empty
// errMsg means the upload was rejected.
func (s *Server) readAudioUpload(c echo.Context) (payload []byte, mimeType, errMsg string) {
	fh, err := c.FormFile("audio")
	if err != nil {
		return nil, "", "no audio file provided"
	}
	if fh.Filename == "" {
		return nil, "", "no file selected"
	}
	if fh.Size > MaxUploadBytes {
		return nil, "", "file too large (max 16MB)"
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return nil, "", "unsupported file format: " + ext
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", "could not read audio file"
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, "", "could not read audio file"
	}
	if len(data) > MaxUploadBytes {
		return nil, "", "file too large (max 16MB)"
	}

	prepared, preparedMime, err := audio.PrepareForTranscription(data, audio.MimeTypeForExtension(ext))
	if err != nil {
		return nil, "", err.Error()
	}
	return prepared, preparedMime, ""
}

func voiceFromForm(c echo.Context) core.VoiceParams {
	voice := core.VoiceParams{VoiceID: c.FormValue("voice_id")}
	if v := c.FormValue("speed"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			voice.Speed = n
		}
	}
	if v := c.FormValue("pitch"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			voice.Pitch = n
		}
	}
	return voice
}
