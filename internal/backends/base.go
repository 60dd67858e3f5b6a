package backends

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"

	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// base carries what every adapter shares
type base struct {
	info    models.BackendInfo
	enabled bool
	logger  arbor.ILogger
}

// ID implements interfaces.BackendAdapter
func (b *base) ID() models.BackendID {
	return b.info.ID
}

// Info implements interfaces.BackendAdapter
func (b *base) Info() models.BackendInfo {
	return b.info
}

// Available implements interfaces.BackendAdapter. The backends are pure Go,
// so only configuration can switch one off.
func (b *base) Available() error {
	if !b.enabled {
		return fmt.Errorf("%w: %s is disabled in configuration", interfaces.ErrBackendUnavailable, b.info.ID)
	}
	return nil
}

// tabulaPage is one page read through the tabula reader
type tabulaPage struct {
	Number    int
	Width     float64
	Height    float64
	Fragments []text.TextFragment
	Content   []byte // decoded content streams, concatenated
}

// openTabula opens a document with the tabula reader
func openTabula(path string) (*reader.Reader, int, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, 0, interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, err)
	}
	count, err := r.PageCount()
	if err != nil {
		r.Close()
		return nil, 0, interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, err)
	}
	if count == 0 {
		r.Close()
		return nil, 0, interfaces.NewDocumentError(path, interfaces.ErrNoPages, nil)
	}
	return r, count, nil
}

// loadTabulaPage reads size, text fragments and decoded content of a page.
// number is 1-based.
func loadTabulaPage(r *reader.Reader, number int) (*tabulaPage, error) {
	page, err := r.GetPage(number - 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	out := &tabulaPage{Number: number}
	out.Width, out.Height = pageSize(page)

	out.Fragments, err = r.ExtractTextFragments(page)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	contents, err := page.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read content streams: %w", err)
	}
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		data, err := stream.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content stream: %w", err)
		}
		out.Content = append(out.Content, data...)
		out.Content = append(out.Content, '\n')
	}

	return out, nil
}

func pageSize(page *pages.Page) (width, height float64) {
	box, err := page.MediaBox()
	if err != nil || len(box) != 4 {
		return 0, 0
	}
	return box[2] - box[0], box[3] - box[1]
}

// fragmentGlyphs converts tabula fragments to layout glyphs
func fragmentGlyphs(frags []text.TextFragment) []glyph {
	out := make([]glyph, 0, len(frags))
	for _, f := range frags {
		h := f.Height
		if h <= 0 {
			h = f.FontSize
		}
		out = append(out, glyph{X: f.X, Y: f.Y, W: f.Width, H: h, S: f.Text})
	}
	return out
}
