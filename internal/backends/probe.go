// -----------------------------------------------------------------------
// Document probe - format and page checks shared by every backend
// Uses pdfcpu to validate the document before any backend parses it
// -----------------------------------------------------------------------

package backends

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ternarybob/tabanchor/internal/interfaces"
)

// DocumentInfo is what the probe learned about a document
type DocumentInfo struct {
	Path      string
	PageCount int
	FileSize  int64
	Encrypted bool
}

// Probe checks that path is a readable PDF with at least one page.
// Failures are *interfaces.DocumentError values wrapping a fatal sentinel.
func Probe(path string) (info *DocumentInfo, err error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, interfaces.NewDocumentError(path, interfaces.ErrUnsupportedFormat,
			fmt.Errorf("extension %q", filepath.Ext(path)))
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, err)
	}
	if stat.IsDir() {
		return nil, interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, fmt.Errorf("is a directory"))
	}

	// pdfcpu can panic on badly broken cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, fmt.Errorf("parser panic: %v", r))
		}
	}()

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, err)
	}
	if pdfCtx.PageCount <= 0 {
		return nil, interfaces.NewDocumentError(path, interfaces.ErrNoPages, nil)
	}

	return &DocumentInfo{
		Path:      path,
		PageCount: pdfCtx.PageCount,
		FileSize:  stat.Size(),
		Encrypted: pdfCtx.Encrypt != nil,
	}, nil
}
