package webui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/textscan/internal/clients"
	"github.com/adverant/nexus/textscan/internal/clipboard"
	"github.com/adverant/nexus/textscan/internal/workflow"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x02\x00\x00\x00\x02\x08\x02\x00\x00\x00")

type fakeExtractor struct {
	mu    sync.Mutex
	lines []string
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, req *clients.ExtractionRequest) ([]string, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.lines, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	srv    *Server
	ts     *httptest.Server
	client *http.Client
	clip   *clipboard.Memory
	clock  *clock.Mock
}

func newHarness(t *testing.T, ex workflow.Extractor) *harness {
	t.Helper()
	h := &harness{clip: &clipboard.Memory{}, clock: clock.NewMock()}
	h.clock.Set(time.UnixMilli(1760000000123))

	srv, err := NewServer(&Config{
		Extractor:      ex,
		Clipboard:      h.clip,
		Clock:          h.clock,
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)
	h.srv = srv
	h.ts = httptest.NewServer(srv.Router())
	t.Cleanup(h.ts.Close)
	t.Cleanup(srv.Sessions().CloseAll)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{Jar: jar}
	return h
}

func (h *harness) page(t *testing.T) string {
	t.Helper()
	resp, err := h.client.Get(h.ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// pageText is page without assertions, for polling from Eventually.
func (h *harness) pageText() string {
	resp, err := h.client.Get(h.ts.URL + "/")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func (h *harness) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := h.client.Post(h.ts.URL+path, "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) upload(t *testing.T, path, name, contentType string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := h.client.Post(h.ts.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// sessionFlow returns the session workflow bound to the client's cookie.
func (h *harness) sessionFlow(t *testing.T) *workflow.Workflow {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, h.ts.URL+"/", nil)
	for _, c := range h.client.Jar.Cookies(req.URL) {
		req.AddCookie(c)
	}
	return h.srv.Sessions().Workflow(httptest.NewRecorder(), req)
}

func TestIndexRendersIdle(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})

	body := h.page(t)
	assert.Contains(t, body, "Drop your image here, or click to browse")
	assert.Contains(t, body, "Supports JPG, PNG, GIF. Maximum 10MB")
	assert.NotContains(t, body, "Extract Text</button>")
	assert.Equal(t, 1, h.srv.Sessions().Len())
}

func TestSelectSubmitAndSucceed(t *testing.T) {
	ex := &fakeExtractor{lines: []string{"Hello", "World"}}
	h := newHarness(t, ex)

	resp := h.upload(t, "/select", "photo.png", "image/png", pngHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := h.page(t)
	assert.Contains(t, body, "photo.png")
	assert.Contains(t, body, "PNG")
	assert.Contains(t, body, "Extract Text")
	assert.Contains(t, body, `src="/preview/`)
	assert.Equal(t, 1, h.srv.Previews().Live())

	h.post(t, "/submit")
	assert.Eventually(t, func() bool {
		return strings.Contains(h.pageText(), "Successfully extracted 2 lines")
	}, time.Second, 10*time.Millisecond)

	body = h.page(t)
	assert.Contains(t, body, "Hello\nWorld")
	assert.Equal(t, 1, ex.callCount())
}

func TestSelectIgnoresNonImage(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})

	resp := h.upload(t, "/select", "notes.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, h.page(t), "Drop your image here")
	assert.Zero(t, h.srv.Previews().Live())
}

func TestSelectRejectsOversizedUpload(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 1<<20+512<<10)...)
	resp := h.upload(t, "/select", "big.png", "image/png", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestProcessingShowsProgressAndBlocksResubmit(t *testing.T) {
	ex := &fakeExtractor{lines: []string{"late"}, gate: make(chan struct{})}
	h := newHarness(t, ex)

	h.upload(t, "/select", "photo.png", "image/png", pngHeader)
	h.post(t, "/submit")
	h.post(t, "/submit")

	body := h.page(t)
	assert.Contains(t, body, "Analyzing your image...")
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.Equal(t, 1, ex.callCount())

	close(ex.gate)
	assert.Eventually(t, func() bool {
		return strings.Contains(h.pageText(), "Successfully extracted 1 lines")
	}, time.Second, 10*time.Millisecond)
}

func TestFailureShowsError(t *testing.T) {
	h := newHarness(t, &fakeExtractor{err: errors.New("connection refused")})

	h.upload(t, "/select", "photo.png", "image/png", pngHeader)
	h.post(t, "/submit")

	assert.Eventually(t, func() bool {
		return strings.Contains(h.pageText(), "Extraction failed")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, h.page(t), "Please try with a different image or check your connection")

	h.post(t, "/reset")
	assert.Contains(t, h.page(t), "Drop your image here")
	assert.Zero(t, h.srv.Previews().Live())
}

func TestCopyAndDownload(t *testing.T) {
	h := newHarness(t, &fakeExtractor{lines: []string{"Hello", "World"}})

	h.upload(t, "/select", "photo.png", "image/png", pngHeader)
	h.post(t, "/submit")
	require.Eventually(t, func() bool {
		return strings.Contains(h.pageText(), "Successfully extracted")
	}, time.Second, 10*time.Millisecond)

	h.post(t, "/copy")
	assert.Equal(t, "Hello\nWorld", h.clip.Text())
	assert.Contains(t, h.page(t), "✓")

	h.clock.Add(workflow.DefaultCopiedReset)
	assert.Eventually(t, func() bool {
		return !strings.Contains(h.pageText(), "✓")
	}, time.Second, 10*time.Millisecond)

	resp, err := h.client.Get(h.ts.URL + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello\nWorld", string(body))
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "extracted-text-1760000000123.txt")
}

func TestDownloadWithoutResultRedirects(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})

	resp, err := h.client.Get(h.ts.URL + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Drop your image here")
}

func TestDragEvents(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	h.page(t)

	resp := h.post(t, "/drag/enter")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, h.page(t), "upload-area drag-active")

	resp = h.post(t, "/drag/leave")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotContains(t, h.page(t), "upload-area drag-active")

	resp = h.post(t, "/drag/sideways")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDropSelectsImage(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	h.page(t)
	h.post(t, "/drag/over")

	resp := h.upload(t, "/drop", "dropped.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff, 0xe0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := h.page(t)
	assert.Contains(t, body, "dropped.jpg")
	assert.Contains(t, body, "JPEG")
	assert.NotContains(t, body, "upload-area drag-active")
}

func TestPreviewServedUntilReset(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	h.upload(t, "/select", "photo.png", "image/png", pngHeader)

	snap := h.sessionFlow(t).Snapshot()
	require.NotNil(t, snap.Image)
	url := h.ts.URL + "/preview/" + strings.TrimPrefix(snap.Image.PreviewRef, "blob:")

	resp, err := h.client.Get(url)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pngHeader, data)

	h.post(t, "/reset")
	resp, err = h.client.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})

	resp, err := h.client.Get(h.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","sessions":0,"previews":0}`, string(body))
}
