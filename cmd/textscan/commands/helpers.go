package commands

import (
	"github.com/adverant/nexus/textscan/internal/clients"
	"github.com/adverant/nexus/textscan/internal/clipboard"
	"github.com/adverant/nexus/textscan/internal/config"
)

// newExtractor leaves the HTTP client unbounded; the workflow applies
// RequestTimeout per submission.
func newExtractor(c *config.Config) *clients.ExtractionClient {
	return clients.NewExtractionClient(c.ExtractURL, 0)
}

func newClipboard(c *config.Config) (clipboard.Writer, error) {
	return clipboard.New(c.ClipboardKey)
}

// serveClipboardKind picks the clipboard for the web UI. An explicit
// --clipboard wins. Otherwise a system clipboard the host cannot reach
// falls back to memory, and fellBack reports that.
func serveClipboardKind(flag, configured string, systemUsable bool) (kind string, fellBack bool) {
	if flag != "" {
		return flag, false
	}
	if configured == "system" && !systemUsable {
		return "memory", true
	}
	return configured, false
}
