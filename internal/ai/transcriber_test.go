package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func staticAudio(data string) AudioOpener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(data)), nil
	}
}

func TestTranscriberRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.Equal(t, "Bearer stt", r.Header.Get("Authorization"))
		require.Equal(t, "BioWeaver", r.Header.Get("X-Title"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "openai/whisper-1", r.FormValue("model"))
		require.Equal(t, "text", r.FormValue("response_format"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "clip.mp3", header.Filename)
		require.Equal(t, "audio/mpeg", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		require.Equal(t, "AUDIO", string(data))
		_, _ = w.Write([]byte("I remember the stethoscope\n"))
	}))
	defer srv.Close()

	tr := NewTranscriber(TranscriberConfig{APIKey: "stt", BaseURL: srv.URL})
	text := tr.Transcribe(context.Background(), "clip.mp3", staticAudio("AUDIO"))
	require.Equal(t, "I remember the stethoscope", text)
}

func TestTranscriberUnconfigured(t *testing.T) {
	tr := NewTranscriber(TranscriberConfig{})
	require.False(t, tr.Configured())
	require.Equal(t, "", tr.Transcribe(context.Background(), "a.wav", staticAudio("x")))
}

func TestTranscriberRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewTranscriber(TranscriberConfig{APIKey: "k", BaseURL: srv.URL})
	require.Equal(t, "", tr.Transcribe(context.Background(), "a.wav", staticAudio("x")))
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTranscriberMissingFileSkipsRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	var opens int32
	open := func(ctx context.Context) (io.ReadCloser, error) {
		atomic.AddInt32(&opens, 1)
		return nil, errors.New("no such file")
	}
	tr := NewTranscriber(TranscriberConfig{APIKey: "k", BaseURL: srv.URL})
	require.Equal(t, "", tr.Transcribe(context.Background(), "gone.wav", open))
	require.Equal(t, int32(1), atomic.LoadInt32(&opens))
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestAudioContentType(t *testing.T) {
	require.Equal(t, "audio/wav", AudioContentType("a.WAV"))
	require.Equal(t, "audio/mp4", AudioContentType("a.m4a"))
	require.Equal(t, "audio/wav", AudioContentType("noext"))
	require.Equal(t, "audio/wav", AudioContentType("doc.pdf"))
}
