package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"voiceagent/core"
)

// Config holds configuration for the ElevenLabs TTS service.
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	APIURL  string `json:"api_url"`
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`

	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsTTS implements core.TTSService over the ElevenLabs stream-input
// WebSocket. Each Synthesize call opens a connection, sends the BOS message,
// the text, and the empty-text EOS, then accumulates base64 audio frames
// until the server marks the generation final.
type ElevenLabsTTS struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// Protocol messages for the stream-input WebSocket.
type (
	bosMessage struct {
		Text             string        `json:"text"`
		VoiceSettings    voiceSettings `json:"voice_settings"`
		GenerationConfig genConfig     `json:"generation_config"`
	}

	voiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	genConfig struct {
		ChunkLengthSchedule []int `json:"chunk_length_schedule"`
	}

	textMessage struct {
		Text string `json:"text"`
	}

	audioMessage struct {
		Audio   string `json:"audio"`
		IsFinal bool   `json:"isFinal"`
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
)

// NewElevenLabsTTS creates the service with defaults applied.
func NewElevenLabsTTS(config Config, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	}
	if config.APIURL == "" {
		config.APIURL = "https://api.elevenlabs.io/v1"
	}
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_turbo_v2_5"
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.75
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		client: &http.Client{},
		logger: logger,
	}
}

func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	if e.config.APIKey == "" {
		return nil, core.NewError(core.ConfigurationError, "ElevenLabs API key is not configured")
	}
	if req.Text == "" {
		return nil, core.NewError(core.ValidationError, "synthesis text must not be empty")
	}
	voice := req.Voice
	if err := voice.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	conn, err := e.dial(ctx)
	if err != nil {
		return nil, core.WrapError(core.UpstreamUnavailable, "ElevenLabs connect failed", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := e.sendJSON(conn, bosMessage{
		Text: " ",
		VoiceSettings: voiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
		GenerationConfig: genConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}); err != nil {
		return nil, core.WrapError(core.SynthesisError, "send stream start", err)
	}
	if err := e.sendJSON(conn, textMessage{Text: req.Text + " "}); err != nil {
		return nil, core.WrapError(core.SynthesisError, "send synthesis text", err)
	}
	// EOS: empty text tells the server to finish generating.
	if err := e.sendJSON(conn, textMessage{Text: ""}); err != nil {
		return nil, core.WrapError(core.SynthesisError, "send stream end", err)
	}

	audio, err := e.collectAudio(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, core.NewError(core.SynthesisError, "ElevenLabs produced no audio")
	}

	return &core.SynthesisResult{
		Audio:          audio,
		ProcessingTime: time.Since(start),
	}, nil
}

func (e *ElevenLabsTTS) dial(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=mp3_44100_128",
		e.config.BaseURL, e.config.VoiceID, e.config.ModelID)

	headers := http.Header{"xi-api-key": {e.config.APIKey}}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, url, headers)
	return conn, err
}

func (e *ElevenLabsTTS) collectAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var audio []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, core.WrapError(core.UpstreamUnavailable, "ElevenLabs synthesis timed out", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(audio) > 0 {
				return audio, nil
			}
			return nil, core.WrapError(core.UpstreamUnavailable, "ElevenLabs read failed", err)
		}

		var msg audioMessage
		if err := sonic.Unmarshal(message, &msg); err != nil {
			e.logger.Warn("unparseable ElevenLabs frame skipped", "error", err.Error())
			continue
		}
		if msg.Error != "" {
			return nil, core.NewError(core.SynthesisError, fmt.Sprintf("ElevenLabs error %d: %s", msg.Code, msg.Message))
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, core.WrapError(core.SynthesisError, "decode audio frame", err)
			}
			audio = append(audio, chunk...)
		}
		if msg.IsFinal {
			return audio, nil
		}
	}
}

func (e *ElevenLabsTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// HealthCheck verifies the key against the user endpoint.
func (e *ElevenLabsTTS) HealthCheck(ctx context.Context) bool {
	if e.config.APIKey == "" {
		return false
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.APIURL+"/user", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
