package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/logger"
)

var (
	sourceImage   = []byte("original-image-bytes")
	renderedImage = []byte("rendered-image-bytes")
)

const predictionsJSON = `{
	"predictions": [
		{"x": 120.5, "y": 80, "width": 40, "height": 30, "confidence": 0.91, "class": "loramide", "class_id": 2, "detection_id": "d1"},
		{"x": 10, "y": 10, "width": 5, "height": 5, "confidence": 0.45, "class": "paracetamol", "class_id": 4}
	],
	"image": {"width": 640, "height": 480}
}`

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	cfg := &config.Config{
		APIKey:  "secret-key",
		APIURL:  url,
		Project: "lab-e3lrr",
		Version: 3,
		Timeout: timeout,
	}
	return NewClient(cfg, logger.Discard())
}

func defaultOptions() Options {
	return Options{Confidence: 0.40, Overlap: 0.30, Stroke: 2, Annotate: true}
}

func TestDetect_ParsesPredictionsAndRenders(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/lab-e3lrr/3" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "secret-key" {
			t.Errorf("Missing api_key, got %q", q.Get("api_key"))
		}
		if q.Get("confidence") != "40" {
			t.Errorf("Expected confidence=40, got %q", q.Get("confidence"))
		}

		body, _ := io.ReadAll(r.Body)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil || !bytes.Equal(decoded, sourceImage) {
			t.Errorf("Body should be the base64 image, got %q", body)
		}

		switch q.Get("format") {
		case "json":
			if q.Get("overlap") != "30" {
				t.Errorf("Expected overlap=30, got %q", q.Get("overlap"))
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, predictionsJSON)
		case "image":
			if q.Get("labels") != "on" || q.Get("stroke") != "2" {
				t.Errorf("Unexpected render params: %s", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(renderedImage)
		default:
			t.Errorf("Unexpected format %q", q.Get("format"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5*time.Second)
	result, err := client.Detect(context.Background(), sourceImage, defaultOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 remote calls, got %d", calls)
	}
	if len(result.Detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(result.Detections))
	}

	first := result.Detections[0]
	if first.Class != "loramide" || first.Confidence != 0.91 || first.X != 120.5 || first.Width != 40 {
		t.Errorf("Unexpected first detection: %+v", first)
	}
	if first.ClassID != 2 || first.DetectionID != "d1" {
		t.Errorf("Unexpected ids: %+v", first)
	}
	if result.ImageWidth != 640 || result.ImageHeight != 480 {
		t.Errorf("Unexpected image size %dx%d", result.ImageWidth, result.ImageHeight)
	}
	if !result.Annotated || result.Fallback {
		t.Errorf("Expected annotated result, got annotated=%v fallback=%v", result.Annotated, result.Fallback)
	}
	if !bytes.Equal(result.AnnotatedImage, renderedImage) {
		t.Errorf("Expected rendered image, got %q", result.AnnotatedImage)
	}
}

func TestDetect_RenderFailureFallsBackToOriginal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "image" {
			http.Error(w, "render unavailable", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, predictionsJSON)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5*time.Second)
	result, err := client.Detect(context.Background(), sourceImage, defaultOptions())
	if err != nil {
		t.Fatalf("Render failure must not surface an error: %v", err)
	}

	if !result.Fallback {
		t.Error("Expected Fallback to be set")
	}
	if result.Annotated {
		t.Error("Annotated must be false on fallback")
	}
	if !bytes.Equal(result.AnnotatedImage, sourceImage) {
		t.Errorf("Expected original image bytes, got %q", result.AnnotatedImage)
	}
	if len(result.Detections) != 2 {
		t.Errorf("Detections should survive a render failure, got %d", len(result.Detections))
	}
}

func TestDetect_NoAnnotateSkipsRender(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.WriteString(w, `{"predictions": []}`)
	}))
	defer server.Close()

	opts := defaultOptions()
	opts.Annotate = false

	client := newTestClient(t, server.URL, 5*time.Second)
	result, err := client.Detect(context.Background(), sourceImage, opts)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
	if result.Detections == nil || len(result.Detections) != 0 {
		t.Errorf("Expected empty, non-nil detections, got %#v", result.Detections)
	}
	if result.AnnotatedImage != nil {
		t.Error("No image expected when annotation is disabled")
	}
}

func TestDetect_PrimaryStatusError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"message":"Unauthorized"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5*time.Second)
	_, err := client.Detect(context.Background(), sourceImage, defaultOptions())
	if err == nil {
		t.Fatal("Expected error")
	}

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected *RemoteError, got %T", err)
	}
	if remote.Kind != KindStatus || remote.StatusCode != http.StatusForbidden {
		t.Errorf("Unexpected error classification: %+v", remote)
	}
	if !errors.Is(err, ErrDetectionFailed) {
		t.Error("errors.Is(err, ErrDetectionFailed) should hold")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Render must not be attempted after a failed primary call, got %d calls", calls)
	}
}

func TestDetect_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"predictions": [`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5*time.Second)
	_, err := client.Detect(context.Background(), sourceImage, defaultOptions())

	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Kind != KindDecode {
		t.Fatalf("Expected decode error, got %v", err)
	}
}

func TestDetect_MissingPredictionsIsDecodeError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error object", `{"error": "Unauthorized"}`},
		{"null body", `null`},
		{"null predictions", `{"predictions": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 5*time.Second)
			result, err := client.Detect(context.Background(), sourceImage, defaultOptions())

			var remote *RemoteError
			if !errors.As(err, &remote) || remote.Kind != KindDecode {
				t.Fatalf("Expected decode error, got result=%+v err=%v", result, err)
			}
		})
	}
}

func TestDetect_TimeoutIsNotRetried(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, 100*time.Millisecond)
	_, err := client.Detect(context.Background(), sourceImage, defaultOptions())
	if err == nil {
		t.Fatal("Expected timeout error")
	}

	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Kind != KindTransport {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("API key leaked into error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected exactly one request, got %d", n)
	}
}

func TestDetect_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, predictionsJSON)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, server.URL, 5*time.Second)
	_, err := client.Detect(ctx, sourceImage, defaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}

func TestDetect_EmptyImage(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0", time.Second)
	_, err := client.Detect(context.Background(), nil, defaultOptions())
	if !errors.Is(err, ErrDetectionFailed) {
		t.Errorf("Expected ErrDetectionFailed, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	tests := map[float64]string{0: "0", 0.4: "40", 0.3: "30", 0.55: "55", 1: "100"}
	for in, expected := range tests {
		if got := percent(in); got != expected {
			t.Errorf("percent(%v) = %s, expected %s", in, got, expected)
		}
	}
}

func TestModelID(t *testing.T) {
	client := newTestClient(t, "http://example.invalid", time.Second)
	if client.ModelID() != "lab-e3lrr/3" {
		t.Errorf("Unexpected model id %s", client.ModelID())
	}
}
