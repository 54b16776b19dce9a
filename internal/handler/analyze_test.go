package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/logger"
	"pillscout/internal/model"
	"pillscout/internal/service/detection"
	"pillscout/internal/service/imageprep"

	"github.com/gorilla/websocket"
)

type stubAnalyzer struct {
	mu      sync.Mutex
	err     error
	sources []string
	images  [][]byte
}

func (a *stubAnalyzer) Analyze(ctx context.Context, image []byte, source string) (*dto.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, source)
	a.images = append(a.images, image)
	if a.err != nil {
		return nil, a.err
	}
	return &dto.AnalysisResult{
		ScanID: "scan-1",
		Source: source,
		State:  model.StateDetected,
		Cards:  []dto.MedicationCard{{Class: "loramide", Known: true}},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{MaxUploadSize: 1 << 20}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid error body: %v", err)
	}
	return body
}

func TestAnalyzeHandler_RawBody(t *testing.T) {
	analyzer := &stubAnalyzer{}
	handler := AnalyzeHandler(analyzer, testConfig(), logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("image-bytes")))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result dto.AnalysisResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if result.ScanID != "scan-1" || len(result.Cards) != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if analyzer.sources[0] != model.SourceUpload || string(analyzer.images[0]) != "image-bytes" {
		t.Errorf("Unexpected call: %v %q", analyzer.sources, analyzer.images)
	}
}

func TestAnalyzeHandler_Multipart(t *testing.T) {
	analyzer := &stubAnalyzer{}
	handler := AnalyzeHandler(analyzer, testConfig(), logger.Discard())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "pills.jpg")
	part.Write([]byte("multipart-image"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if string(analyzer.images[0]) != "multipart-image" {
		t.Errorf("Expected the file field, got %q", analyzer.images[0])
	}
}

func TestAnalyzeHandler_MultipartMissingFile(t *testing.T) {
	analyzer := &stubAnalyzer{}
	handler := AnalyzeHandler(analyzer, testConfig(), logger.Discard())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("note", "no file here")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if decodeError(t, rec).Code != CodeInvalidRequest {
		t.Error("Expected invalid_request")
	}
	if len(analyzer.images) != 0 {
		t.Error("Analyzer must not be called")
	}
}

func TestAnalyzeHandler_Oversize(t *testing.T) {
	analyzer := &stubAnalyzer{}
	cfg := testConfig()
	cfg.MaxUploadSize = 16
	handler := AnalyzeHandler(analyzer, cfg, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rec.Code)
	}
	if decodeError(t, rec).Code != CodePayloadTooLarge {
		t.Error("Expected payload_too_large")
	}
}

func TestAnalyzeHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"detection failure", &detection.RemoteError{Kind: detection.KindStatus, StatusCode: 500, Message: "remote"}, http.StatusBadGateway, CodeDetectionFailed},
		{"unsupported format", imageprep.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedMedia},
		{"empty image", imageprep.ErrEmptyImage, http.StatusBadRequest, CodeInvalidRequest},
		{"corrupt image", imageprep.ErrInvalidImage, http.StatusBadRequest, CodeInvalidImage},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AnalyzeHandler(&stubAnalyzer{err: tt.err}, testConfig(), logger.Discard())

			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("data"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			if got := decodeError(t, rec).Code; got != tt.code {
				t.Errorf("Expected code %q, got %q", tt.code, got)
			}
		})
	}
}

func TestCameraWebsocketHandler_FramesGetReplies(t *testing.T) {
	analyzer := &stubAnalyzer{}
	server := httptest.NewServer(CameraWebsocketHandler(analyzer, testConfig(), logger.Discard()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("frame-1")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var result dto.AnalysisResult
	if err := conn.ReadJSON(&result); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if result.Source != model.SourceCamera {
		t.Errorf("Expected camera source, got %q", result.Source)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("data:image/jpeg;base64,ZnJhbWUtMg==")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := conn.ReadJSON(&result); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	if string(analyzer.images[1]) != "frame-2" {
		t.Errorf("Expected decoded data URL, got %q", analyzer.images[1])
	}
}

func TestCameraWebsocketHandler_ErrorReply(t *testing.T) {
	analyzer := &stubAnalyzer{err: &detection.RemoteError{Kind: detection.KindTransport, Message: "down"}}
	server := httptest.NewServer(CameraWebsocketHandler(analyzer, testConfig(), logger.Discard()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	conn.WriteMessage(websocket.BinaryMessage, []byte("frame"))
	var body dto.ErrorResponse
	if err := conn.ReadJSON(&body); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if body.Code != CodeDetectionFailed {
		t.Errorf("Expected detection_failed, got %q", body.Code)
	}

	// the connection stays usable after a failed frame
	conn.WriteMessage(websocket.BinaryMessage, []byte("frame"))
	if err := conn.ReadJSON(&body); err != nil {
		t.Fatalf("Second read failed: %v", err)
	}
}

func TestDecodeDataURL(t *testing.T) {
	for _, in := range []string{"data:image/png;base64,aGk=", "aGk="} {
		got, err := decodeDataURL(in)
		if err != nil || string(got) != "hi" {
			t.Errorf("decodeDataURL(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := decodeDataURL("not base64!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}
