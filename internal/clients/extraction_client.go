/**
 * Extraction Client for TextScan
 *
 * Sends one selected image to the extraction service and returns the
 * recognised text lines.
 *
 * Contract:
 * - POST <endpoint> (default http://127.0.0.1:8000/api/extract/)
 * - multipart/form-data with a single file field named "image"
 * - 2xx response: JSON object {"text": ["line", ...]}; a missing or null
 *   "text" field is an empty result
 * - any other status, a transport failure or an undecodable body is a failure
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/adverant/nexus/textscan/internal/errors"
	"github.com/adverant/nexus/textscan/internal/logging"
)

// ImageField is the multipart field carrying the image.
const ImageField = "image"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// ExtractionClient handles communication with the extraction service
type ExtractionClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// ExtractionRequest carries the selected image
type ExtractionRequest struct {
	ImageData   []byte // File content
	Filename    string // Original filename
	ContentType string // MIME type (e.g., image/png)
}

// ExtractionResponse is the JSON body returned on success
type ExtractionResponse struct {
	Text []string `json:"text"`
}

// NewExtractionClient creates a new extraction client. A zero timeout means
// the request is bounded only by ctx.
func NewExtractionClient(endpoint string, timeout time.Duration) *ExtractionClient {
	return &ExtractionClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("ExtractionClient"),
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *ExtractionClient) WithHTTPClient(hc *http.Client) *ExtractionClient {
	c.httpClient = hc
	return c
}

// Endpoint returns the configured extraction URL
func (c *ExtractionClient) Endpoint() string {
	return c.endpoint
}

// Extract uploads the image and returns the text lines in service order
func (c *ExtractionClient) Extract(ctx context.Context, req *ExtractionRequest) ([]string, error) {
	if req == nil || len(req.ImageData) == 0 {
		return nil, apperrors.NewInvalidRequestError("image data is required: received empty buffer")
	}

	filename := req.Filename
	if filename == "" {
		filename = "image"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body, formContentType, err := buildForm(filename, contentType, req.ImageData)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("failed to create HTTP request: %v", err))
	}
	httpReq.Header.Set("Content-Type", formContentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	c.logger.Debug("Uploading image for extraction",
		"endpoint", c.endpoint,
		"filename", filename,
		"size", len(req.ImageData),
		"contentType", contentType)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError(c.endpoint, time.Since(startTime), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewTransportError(c.endpoint, time.Since(startTime), fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewHTTPStatusError(c.endpoint, resp.StatusCode, string(respBody))
	}

	lines, err := decodeLines(respBody)
	if err != nil {
		return nil, apperrors.NewDecodeError(c.endpoint, err)
	}

	c.logger.Debug("Extraction complete",
		"lines", len(lines),
		"duration", time.Since(startTime))

	return lines, nil
}

func buildForm(filename, contentType string, data []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		ImageField, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write image data to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// decodeLines accepts a JSON object whose optional "text" field is an array
// of strings. A missing or null field yields an empty, non-nil slice.
func decodeLines(body []byte) ([]string, error) {
	var out ExtractionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w (raw response: %s)", err, truncate(string(body), 200))
	}
	if out.Text == nil {
		return []string{}, nil
	}
	return out.Text, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
