package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const providerVITSSimpleAPI = "vits_simple_api"

// VITSSimpleAPI implements Provider against a self-hosted vits-simple-api
// instance. Unlike ElevenLabs it carries no API key: the speaker is
// selected by model name + numeric id, and the server is reached by
// network placement alone. Grounded on
// vts_model_control/clients/vits_simple_api/client.py.
type VITSSimpleAPI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewVITSSimpleAPI creates a new vits-simple-api TTS provider. VoiceID
// carries the speaker id and ModelID the model name (e.g. "vits").
// BaseURL and VoiceID are required; ModelID is not validated. None of them
// is an API credential.
func NewVITSSimpleAPI(opts ...Option) (*VITSSimpleAPI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateSelfHosted(); err != nil {
		return nil, err
	}

	return &VITSSimpleAPI{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "tts.vits_simple_api"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (v *VITSSimpleAPI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	resp, err := v.doRequest(ctx, v.client, text, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, v.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerVITSSimpleAPI, fmt.Errorf("read response: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	v.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", v.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    v.outputFormat(),
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  v.estimateDuration(len(audio)),
	}, nil
}

// Stream converts text to audio with chunked streaming output.
func (v *VITSSimpleAPI) Stream(ctx context.Context, text string) (AudioStream, error) {
	client := &http.Client{Timeout: v.config.StreamTimeout}

	resp, err := v.doRequest(ctx, client, text, true)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, v.parseError(resp)
	}

	return &httpStream{
		body:   resp.Body,
		format: v.outputFormat(),
	}, nil
}

// Health checks that the server is reachable.
func (v *VITSSimpleAPI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", v.baseURL+"/", nil)
	if err != nil {
		return WrapError(providerVITSSimpleAPI, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return WrapError(providerVITSSimpleAPI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	// vits-simple-api has no dedicated health endpoint; any response
	// (including a 404 for the bare path) means the server is up.
	if resp.StatusCode >= 500 {
		return v.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (v *VITSSimpleAPI) Close() error {
	v.client.CloseIdleConnections()
	return nil
}

func (v *VITSSimpleAPI) doRequest(ctx context.Context, client *http.Client, text string, streaming bool) (*http.Response, error) {
	modelName := strings.ToLower(v.config.ModelID)
	requestURL := fmt.Sprintf("%s/voice/%s", v.baseURL, modelName)

	q := url.Values{}
	q.Set("text", text)
	q.Set("id", v.config.VoiceID)
	q.Set("format", "wav")
	q.Set("lang", v.config.Language)
	if streaming {
		q.Set("streaming", "true")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, WrapError(providerVITSSimpleAPI, fmt.Errorf("create request: %w", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, WrapError(providerVITSSimpleAPI, fmt.Errorf("request: %w", err))
	}
	return resp, nil
}

func (v *VITSSimpleAPI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		Provider:   providerVITSSimpleAPI,
	}
}

func (v *VITSSimpleAPI) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   EncodingWAV,
		SampleRate: SampleRateFromEncoding(EncodingWAV),
		Channels:   1,
		BitDepth:   16,
	}
}

func (v *VITSSimpleAPI) estimateDuration(bytes int) time.Duration {
	sampleRate := SampleRateFromEncoding(EncodingWAV)
	samples := bytes / 2
	seconds := float64(samples) / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Verify VITSSimpleAPI implements Provider at compile time.
var _ Provider = (*VITSSimpleAPI)(nil)
