// Package workflow implements the upload workflow behind the TextScan page:
// select an image, preview it, submit it for extraction, then copy or
// download the resulting lines. All state lives in one Workflow and changes
// only through its methods.
//
// Transitions:
//
//	Idle/Ready/Success/Error --SelectFile(image)--> Ready
//	Ready --Submit--> Processing
//	Processing --response--> Success | Error
//	any --Reset--> Idle
//
// Operations whose guard fails return a sentinel error and leave the state
// untouched; callers driving a UI may ignore those errors.
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/adverant/nexus/textscan/internal/clients"
	"github.com/adverant/nexus/textscan/internal/clipboard"
	"github.com/adverant/nexus/textscan/internal/download"
	apperrors "github.com/adverant/nexus/textscan/internal/errors"
	"github.com/adverant/nexus/textscan/internal/imageinfo"
	"github.com/adverant/nexus/textscan/internal/logging"
)

// DefaultCopiedReset is how long the Copied flag stays set.
const DefaultCopiedReset = 2000 * time.Millisecond

var (
	ErrNotImage        = errors.New("workflow: selection is not an image")
	ErrBusy            = errors.New("workflow: extraction in progress")
	ErrNothingToSubmit = errors.New("workflow: no selected image ready to submit")
	ErrNoResult        = errors.New("workflow: no extraction result")
	ErrClosed          = errors.New("workflow: closed")
)

// Extractor performs the extraction call.
type Extractor interface {
	Extract(ctx context.Context, req *clients.ExtractionRequest) ([]string, error)
}

// PreviewStore issues and revokes preview references.
type PreviewStore interface {
	Create(data []byte, contentType string) (string, error)
	Revoke(ref string) error
}

// Config wires a Workflow to its collaborators.
type Config struct {
	Extractor Extractor
	Previews  PreviewStore
	Clipboard clipboard.Writer

	// Clock drives the Copied reset timer and download names. Defaults to the
	// wall clock.
	Clock clock.Clock
	// CopiedReset defaults to DefaultCopiedReset.
	CopiedReset time.Duration
	// RequestTimeout bounds a single extraction request; zero means none.
	RequestTimeout time.Duration
}

// Workflow is the upload state machine for one user session.
type Workflow struct {
	cfg    Config
	logger *logging.Logger

	mu         sync.Mutex
	status     Status
	image      *SelectedImage
	result     []string
	dragActive bool
	copied     bool

	copiedTimer *clock.Timer
	copiedSeq   uint64

	// generation changes on every selection and reset. A response carrying
	// an older generation belongs to a discarded image and is dropped.
	generation uint64
	closed     bool
}

// New creates an Idle workflow.
func New(cfg *Config) *Workflow {
	c := *cfg
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.CopiedReset <= 0 {
		c.CopiedReset = DefaultCopiedReset
	}
	return &Workflow{
		cfg:    c,
		logger: logging.NewLogger("Workflow"),
		status: Idle,
	}
}

// Status returns the current status.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SelectFile replaces the selected image with f when f is image-typed. The
// previous preview reference is released and any previous result is cleared.
// Non-image candidates return ErrNotImage and change nothing.
func (w *Workflow) SelectFile(f File) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectLocked(f)
}

func (w *Workflow) selectLocked(f File) error {
	if w.closed {
		return ErrClosed
	}
	if w.status == Processing {
		return ErrBusy
	}

	contentType := f.resolveContentType()
	if !imageinfo.IsImage(contentType) {
		w.logger.Debug("Ignoring non-image selection", "name", f.Name, "contentType", contentType)
		return ErrNotImage
	}

	ref, err := w.cfg.Previews.Create(f.Data, contentType)
	if err != nil {
		return err
	}

	size := f.Size
	if size == 0 {
		size = int64(len(f.Data))
	}
	info := imageinfo.Sniff(f.Data)

	w.releasePreviewLocked()
	w.image = &SelectedImage{
		Name:        f.Name,
		ContentType: contentType,
		Size:        size,
		Width:       info.Width,
		Height:      info.Height,
		PreviewRef:  ref,
		data:        f.Data,
	}
	w.result = nil
	w.status = Ready
	w.generation++

	w.logger.Debug("Image selected",
		"name", f.Name,
		"contentType", contentType,
		"size", size,
		"generation", w.generation)
	return nil
}

// Submit starts the single extraction request for the selected image. It
// returns ErrNothingToSubmit unless the workflow is Ready with an image. The
// returned channel is closed once the response has been applied (or dropped
// as stale).
func (w *Workflow) Submit(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.status != Ready || w.image == nil {
		return nil, ErrNothingToSubmit
	}

	req := &clients.ExtractionRequest{
		ImageData:   w.image.data,
		Filename:    w.image.Name,
		ContentType: w.image.ContentType,
	}
	gen := w.generation
	w.status = Processing

	w.logger.Info("Submitting image for extraction",
		"name", req.Filename,
		"size", len(req.ImageData),
		"generation", gen)

	done := make(chan struct{})
	go w.extract(ctx, gen, req, done)
	return done, nil
}

func (w *Workflow) extract(ctx context.Context, gen uint64, req *clients.ExtractionRequest, done chan<- struct{}) {
	defer close(done)

	if w.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.RequestTimeout)
		defer cancel()
	}

	startTime := time.Now()
	lines, err := w.cfg.Extractor.Extract(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.generation != gen || w.status != Processing {
		w.logger.Warn("Dropping stale extraction response",
			"generation", gen,
			"current", w.generation,
			"status", w.status.String())
		return
	}

	if err != nil {
		w.status = Error
		w.result = nil
		w.logger.Warn("Extraction failed",
			"name", req.Filename,
			"code", string(apperrors.CodeOf(err)),
			"duration", time.Since(startTime),
			"error", err)
		return
	}

	w.result = append(make([]string, 0, len(lines)), lines...)
	w.status = Success
	w.logger.Info("Extraction succeeded",
		"name", req.Filename,
		"lines", len(lines),
		"duration", time.Since(startTime))
}

// CopyResult writes the newline-joined result to the clipboard and sets the
// Copied flag, which clears itself after the configured delay. A clipboard
// failure leaves Copied unchanged and is returned.
func (w *Workflow) CopyResult(ctx context.Context) error {
	w.mu.Lock()
	if w.status != Success {
		w.mu.Unlock()
		return ErrNoResult
	}
	text := Serialize(w.result)
	gen := w.generation
	w.mu.Unlock()

	if err := w.cfg.Clipboard.WriteText(ctx, text); err != nil {
		w.logger.Warn("Clipboard write failed", "error", err)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != gen {
		return nil
	}

	w.stopCopiedTimerLocked()
	w.copied = true
	w.copiedSeq++
	seq := w.copiedSeq
	w.copiedTimer = w.cfg.Clock.AfterFunc(w.cfg.CopiedReset, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.copiedSeq == seq {
			w.copied = false
			w.copiedTimer = nil
		}
	})
	return nil
}

// DownloadResult offers the newline-joined result to sink as
// extracted-text-<epoch-millis>.txt and releases the temporary handle before
// returning it. The returned handle still carries Name and Location.
func (w *Workflow) DownloadResult(ctx context.Context, sink download.Sink) (*download.File, error) {
	w.mu.Lock()
	if w.status != Success {
		w.mu.Unlock()
		return nil, ErrNoResult
	}
	text := Serialize(w.result)
	name := download.Filename(w.cfg.Clock.Now())
	w.mu.Unlock()

	f := download.NewFile(name, []byte(text))
	defer f.Release()

	if err := sink.Offer(ctx, f); err != nil {
		w.logger.Warn("Download failed", "name", name, "error", err)
		return nil, err
	}
	w.logger.Debug("Result offered for download", "name", name, "location", f.Location)
	return f, nil
}

// Reset returns to Idle, releasing the preview reference and clearing the
// result and transient flags. An in-flight response arriving afterwards is
// dropped.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Workflow) resetLocked() {
	w.stopCopiedTimerLocked()
	w.releasePreviewLocked()
	w.image = nil
	w.result = nil
	w.status = Idle
	w.dragActive = false
	w.copied = false
	w.generation++
}

// Close tears the workflow down. It is safe to call more than once.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.resetLocked()
	w.closed = true
}

// Drag applies a drag event. Enter and Over set DragActive; Leave and Drop
// clear it. Drop then selects f when one was dropped.
func (w *Workflow) Drag(evt DragEvent, f *File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch evt {
	case DragEnter, DragOver:
		w.dragActive = true
	case DragLeave:
		w.dragActive = false
	case Drop:
		w.dragActive = false
		if f != nil {
			return w.selectLocked(*f)
		}
	}
	return nil
}

// Snapshot returns an immutable view of the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		Status:     w.status,
		DragActive: w.dragActive,
		Copied:     w.copied,
	}
	if w.image != nil {
		s.Image = w.image.view()
	}
	if w.status == Success {
		s.Lines = append(make([]string, 0, len(w.result)), w.result...)
	}
	return s
}

func (w *Workflow) releasePreviewLocked() {
	if w.image == nil || w.image.PreviewRef == "" {
		return
	}
	if err := w.cfg.Previews.Revoke(w.image.PreviewRef); err != nil {
		w.logger.Error("Preview release failed", "ref", w.image.PreviewRef, "error", err)
	}
	w.image.PreviewRef = ""
}

func (w *Workflow) stopCopiedTimerLocked() {
	if w.copiedTimer != nil {
		w.copiedTimer.Stop()
		w.copiedTimer = nil
	}
	w.copiedSeq++
}

// Snapshot is a point-in-time copy of the workflow state. Lines is set only
// when Status is Success.
type Snapshot struct {
	Status     Status
	Image      *ImageView
	Lines      []string
	DragActive bool
	Copied     bool
}

// Text is the newline-joined result.
func (s Snapshot) Text() string {
	return Serialize(s.Lines)
}

// LineCount is the number of result lines.
func (s Snapshot) LineCount() int {
	return len(s.Lines)
}

// Serialize joins lines with "\n".
func Serialize(lines []string) string {
	return strings.Join(lines, "\n")
}
