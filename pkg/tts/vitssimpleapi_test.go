package tts_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nekro-live/animctl/pkg/tts"
)

func TestVITSSimpleAPI_ConstructionRequiresBaseURLAndVoice(t *testing.T) {
	if _, err := tts.NewVITSSimpleAPI(tts.WithModel("vits")); err == nil {
		t.Fatal("expected an error with no base URL or voice set")
	}
	if _, err := tts.NewVITSSimpleAPI(tts.WithBaseURL("http://localhost:23456"), tts.WithModel("vits")); err == nil {
		t.Fatal("expected an error with no voice ID set")
	}
}

func TestVITSSimpleAPI_SynthesizeSendsExactQueryContract(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("RIFF....WAVEfmt "))
	}))
	defer srv.Close()

	provider, err := tts.NewVITSSimpleAPI(
		tts.WithBaseURL(srv.URL),
		tts.WithModel("vits"),
		tts.WithVoice("4"),
		tts.WithLanguage("zh"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "你好")
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Fatal("expected non-empty audio")
	}

	if gotPath != "/voice/vits" {
		t.Errorf("expected path /voice/vits, got %s", gotPath)
	}
	if gotQuery.Get("text") != "你好" {
		t.Errorf("expected text=你好, got %s", gotQuery.Get("text"))
	}
	if gotQuery.Get("id") != "4" {
		t.Errorf("expected id=4, got %s", gotQuery.Get("id"))
	}
	if gotQuery.Get("format") != "wav" {
		t.Errorf("expected format=wav, got %s", gotQuery.Get("format"))
	}
	if gotQuery.Get("lang") != "zh" {
		t.Errorf("expected lang=zh, got %s", gotQuery.Get("lang"))
	}
	if gotQuery.Has("streaming") {
		t.Error("expected no streaming param on Synthesize")
	}
}

func TestVITSSimpleAPI_StreamSetsStreamingParamAndYieldsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("streaming") != "true" {
			t.Errorf("expected streaming=true, got %s", r.URL.Query().Get("streaming"))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("chunk-one"))
	}))
	defer srv.Close()

	provider, err := tts.NewVITSSimpleAPI(
		tts.WithBaseURL(srv.URL),
		tts.WithModel("vits"),
		tts.WithVoice("0"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	stream, err := provider.Stream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer stream.Close()

	var total []byte
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if chunk == nil {
			break
		}
		total = append(total, chunk...)
	}
	if string(total) != "chunk-one" {
		t.Errorf("expected %q, got %q", "chunk-one", total)
	}
}

func TestVITSSimpleAPI_NonOKStatusReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not found"))
	}))
	defer srv.Close()

	provider, err := tts.NewVITSSimpleAPI(
		tts.WithBaseURL(srv.URL),
		tts.WithModel("vits"),
		tts.WithVoice("0"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	_, err = provider.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	var apiErr *tts.APIError
	if !asAPIError(err, &apiErr) {
		t.Fatalf("expected an *tts.APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", apiErr.StatusCode)
	}
}

func TestVITSSimpleAPI_HealthTreatsAnyNonServerErrorAsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	provider, err := tts.NewVITSSimpleAPI(
		tts.WithBaseURL(srv.URL),
		tts.WithModel("vits"),
		tts.WithVoice("0"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	if err := provider.Health(context.Background()); err != nil {
		t.Fatalf("expected health to treat 404 as reachable, got %v", err)
	}
}

func asAPIError(err error, target **tts.APIError) bool {
	if ae, ok := err.(*tts.APIError); ok {
		*target = ae
		return true
	}
	return false
}
