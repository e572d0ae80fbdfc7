package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/awarelab/scenario-api/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return client
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestSynthesize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/text-to-speech/voice-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		var req ttsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "안녕하세요", req.Text)
		assert.Equal(t, modelID, req.ModelID)
		assert.InDelta(t, 0.5, req.VoiceSettings.Stability, 0.001)
		assert.InDelta(t, 0.8, req.VoiceSettings.SimilarityBoost, 0.001)
		assert.InDelta(t, 1.1, req.VoiceSettings.Speed, 0.001)

		_, _ = w.Write([]byte("mp3-bytes"))
	})

	client := newTestClient(t, mux)

	audio, err := client.Synthesize(context.Background(), "안녕하세요", "voice-1", provider.DefaultVoiceSettings())
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestSynthesize_MissingVoiceID(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.Synthesize(context.Background(), "text", "", provider.DefaultVoiceSettings())
	assert.ErrorIs(t, err, ErrVoiceIDRequired)
}

func TestSynthesize_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/text-to-speech/voice-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := newTestClient(t, mux)

	_, err := client.Synthesize(context.Background(), "text", "voice-1", provider.DefaultVoiceSettings())
	assert.ErrorIs(t, err, ErrServerError)
}

func TestCreateDub(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/dubbing", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ko", r.FormValue("target_lang"))
		assert.Equal(t, "ko", r.FormValue("source_lang"))
		assert.Equal(t, "1", r.FormValue("num_speakers"))
		assert.Equal(t, "false", r.FormValue("watermark"))
		assert.Equal(t, "true", r.FormValue("drop_background_audio"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "scenario_investment_call.mp3", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]any{"dubbing_id": "dub-1", "expected_duration_sec": 12.5})
	})

	client := newTestClient(t, mux)

	id, err := client.CreateDub(context.Background(), "scenario_investment_call.mp3", []byte("source-audio"))
	require.NoError(t, err)
	assert.Equal(t, "dub-1", id)
}

func TestCreateDub_MissingID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/dubbing", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})

	client := newTestClient(t, mux)

	_, err := client.CreateDub(context.Background(), "file.mp3", []byte("audio"))
	assert.ErrorIs(t, err, ErrNoDubbingID)
}

func TestDubStatus_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus provider.Status
	}{
		{"dubbed is completed", "dubbed", provider.StatusCompleted},
		{"failed is terminal", "failed", provider.StatusFailed},
		{"dubbing is processing", "dubbing", provider.StatusProcessing},
		{"unknown is queued", "pending", provider.StatusQueued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /v1/dubbing/dub-1", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"dubbing_id": "dub-1", "status": tt.status})
			})

			client := newTestClient(t, mux)

			result, err := client.DubStatus(context.Background(), "dub-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestDubAudio(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/dubbing/dub-1/audio/ko", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dubbed-audio"))
	})

	client := newTestClient(t, mux)

	audio, err := client.DubAudio(context.Background(), "dub-1", "ko")
	require.NoError(t, err)
	assert.Equal(t, []byte("dubbed-audio"), audio)
}

func TestDubAudio_RequestFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/dubbing/dub-1/audio/ko", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	_, err := client.DubAudio(context.Background(), "dub-1", "ko")
	assert.ErrorIs(t, err, ErrRequestFailed)

	var noMatch *json.SyntaxError
	assert.False(t, errors.As(err, &noMatch))
}
