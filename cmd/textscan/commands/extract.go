package commands

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/textscan/cmd/textscan/ui"
	"github.com/adverant/nexus/textscan/internal/download"
	"github.com/adverant/nexus/textscan/internal/preview"
	"github.com/adverant/nexus/textscan/internal/workflow"
)

var (
	extractCopy     bool
	extractDownload bool
	extractQuiet    bool
)

var errExtractionFailed = errors.New("extraction failed")

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract text from one image",
	Long: `Select the image, submit it to the extraction service and print the
recognised lines. --copy puts the text on the clipboard and --download writes
extracted-text-<epoch-millis>.txt into the download directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractCopy, "copy", false, "copy the result to the clipboard")
	extractCmd.Flags().BoolVarP(&extractDownload, "download", "d", false, "save the result as a text file")
	extractCmd.Flags().BoolVarP(&extractQuiet, "quiet", "q", false, "do not print the extracted text")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	clip, err := newClipboard(cfg)
	if err != nil {
		return err
	}

	extractor := newExtractor(cfg)
	previews := preview.NewRegistry()
	wf := workflow.New(&workflow.Config{
		Extractor:      extractor,
		Previews:       previews,
		Clipboard:      clip,
		Clock:          clock.New(),
		CopiedReset:    cfg.CopiedReset,
		RequestTimeout: cfg.RequestTimeout,
	})
	defer wf.Close()

	file := workflow.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Size:        int64(len(data)),
		Data:        data,
	}
	if err := wf.SelectFile(file); err != nil {
		if errors.Is(err, workflow.ErrNotImage) {
			return fmt.Errorf("%s is not an image", file.Name)
		}
		return err
	}

	img := wf.Snapshot().Image
	ui.KeyValue("File", img.Name)
	ui.KeyValue("Size", img.SizeKB())
	ui.KeyValue("Type", img.Subtype())
	if img.Width > 0 {
		ui.KeyValue("Pixels", fmt.Sprintf("%d×%d", img.Width, img.Height))
	}
	ui.Verbose("Posting to %s", extractor.Endpoint())

	done, err := wf.Submit(ctx)
	if err != nil {
		return err
	}

	spin := ui.NewSpinner("Analyzing your image...")
	spin.Start()
	<-done
	spin.Stop()

	snap := wf.Snapshot()
	if snap.Status != workflow.Success {
		ui.Error("Extraction failed")
		ui.Hint("Please try with a different image or check your connection")
		return errExtractionFailed
	}

	ui.Success("Successfully extracted %d lines", snap.LineCount())
	if !extractQuiet && snap.LineCount() > 0 {
		ui.Text(snap.Text())
	}

	if extractCopy {
		if err := wf.CopyResult(ctx); err != nil {
			ui.Error("Copy failed: %v", err)
		} else {
			ui.Success("Copied to clipboard")
		}
	}

	if extractDownload {
		f, err := wf.DownloadResult(ctx, download.DirSink{Dir: cfg.DownloadDir})
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		ui.Success("Saved %s", f.Location)
	}
	return nil
}
