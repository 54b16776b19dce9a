package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/logger"
	"pillscout/internal/model"
)

// Options are the per-call inference parameters.
type Options struct {
	Confidence float64 // [0,1]
	Overlap    float64 // [0,1]
	Stroke     int
	Annotate   bool
}

// Result is the outcome of one Detect call.
type Result struct {
	Detections     []model.Detection
	AnnotatedImage []byte
	Annotated      bool // AnnotatedImage came from the render endpoint
	Fallback       bool // render was requested but failed; AnnotatedImage is the original
	ImageWidth     int
	ImageHeight    int
}

// Client talks to the hosted detection service. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	project    string
	version    int
	httpClient *http.Client
	logger     *logger.Logger
}

type predictResponse struct {
	Predictions *[]model.Detection `json:"predictions"`
	Image       struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image"`
}

// NewClient builds the client from validated configuration.
func NewClient(cfg *config.Config, logger *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.APIURL,
		apiKey:     cfg.APIKey,
		project:    cfg.Project,
		version:    cfg.Version,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ModelID returns "<project>/<version>".
func (c *Client) ModelID() string {
	return fmt.Sprintf("%s/%d", c.project, c.version)
}

// Detect sends the image to the detection endpoint and, when requested,
// fetches a rendered copy with boxes drawn by the service. A failed render
// is not an error: the original image is returned with Fallback set.
func (c *Client) Detect(ctx context.Context, image []byte, opts Options) (*Result, error) {
	if len(image) == 0 {
		return nil, &RemoteError{Kind: KindRequest, Message: "empty image"}
	}

	encoded := base64.StdEncoding.EncodeToString(image)

	body, err := c.post(ctx, c.predictURL(opts), encoded)
	if err != nil {
		return nil, err
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &RemoteError{Kind: KindDecode, Message: "malformed detection response", Cause: err}
	}
	if parsed.Predictions == nil {
		return nil, &RemoteError{Kind: KindDecode, Message: "detection response has no predictions", Cause: fmt.Errorf("%s", truncate(body, 200))}
	}
	detections := *parsed.Predictions
	if detections == nil {
		detections = []model.Detection{}
	}

	result := &Result{
		Detections:  detections,
		ImageWidth:  parsed.Image.Width,
		ImageHeight: parsed.Image.Height,
	}

	if !opts.Annotate {
		return result, nil
	}

	rendered, err := c.post(ctx, c.renderURL(opts), encoded)
	if err != nil || len(rendered) == 0 {
		if err == nil {
			err = fmt.Errorf("empty render response")
		}
		c.logger.Warning("Render request failed, using original image: %v", err)
		result.AnnotatedImage = image
		result.Fallback = true
		return result, nil
	}

	result.AnnotatedImage = rendered
	result.Annotated = true
	return result, nil
}

// post issues exactly one request; there is no retry.
func (c *Client) post(ctx context.Context, endpoint, payload string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(payload))
	if err != nil {
		return nil, &RemoteError{Kind: KindRequest, Message: "create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Kind: KindTransport, Message: "send request", Cause: redact(err, c.apiKey)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Kind: KindTransport, Message: "read response", Cause: redact(err, c.apiKey)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("detection service returned status %d", resp.StatusCode),
			Cause:      fmt.Errorf("%s", truncate(data, 200)),
		}
	}

	c.logger.Debug("Remote call to %s/%d took %v (%d bytes)", c.project, c.version, time.Since(start), len(data))
	return data, nil
}

func (c *Client) predictURL(opts Options) string {
	q := c.baseQuery(opts)
	q.Set("overlap", percent(opts.Overlap))
	q.Set("format", "json")
	return c.endpoint() + "?" + q.Encode()
}

func (c *Client) renderURL(opts Options) string {
	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = 2
	}
	q := c.baseQuery(opts)
	q.Set("format", "image")
	q.Set("labels", "on")
	q.Set("stroke", strconv.Itoa(stroke))
	return c.endpoint() + "?" + q.Encode()
}

func (c *Client) baseQuery(opts Options) url.Values {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("confidence", percent(opts.Confidence))
	return q
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/%s/%d", c.baseURL, url.PathEscape(c.project), c.version)
}

// percent converts a [0,1] threshold into the integer percentage the hosted
// API expects.
func percent(v float64) string {
	return strconv.Itoa(int(math.Round(v * 100)))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
