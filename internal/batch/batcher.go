// Package batch assembles OCR pages into token-bounded batches for the
// generation service. Each batch is itself an IR page, so downstream steps
// treat batched and unbatched documents identically.
package batch

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// TokenCounter estimates the token count of a piece of markdown.
type TokenCounter func(text string) int

// Combine folds the pages of doc into batches whose estimated token count
// stays within maxTokensPerPage. Pages that fit are accumulated into a
// buffer (markdown newline-joined, images concatenated in order); a page
// that alone exceeds the limit flushes the buffer and is emitted as
// consecutive fixed-size character slices of its markdown. Slices are not
// re-tokenized, so the limit is approximate for split pages only. Batch
// order follows page order; indices are reassigned sequentially from 0.
//
// maxTotalTokens is the caller's per-request budget and must be at least
// maxTokensPerPage; it is enforced by the caller per batch, not here.
func Combine(doc *models.Document, counter TokenCounter, maxTotalTokens, maxTokensPerPage int) (*models.Document, error) {
	if counter == nil {
		return nil, fmt.Errorf("%w: nil token counter", models.ErrInvalidInput)
	}
	if maxTokensPerPage <= 0 || maxTokensPerPage > maxTotalTokens {
		return nil, fmt.Errorf("%w: maxTokensPerPage %d must be in (0, %d]", models.ErrInvalidInput, maxTokensPerPage, maxTotalTokens)
	}

	out := &models.Document{Metadata: doc.Metadata}
	var buf *accumulator

	flush := func() {
		if buf == nil {
			return
		}
		out.Pages = append(out.Pages, buf.page(len(out.Pages)))
		buf = nil
	}

	for i := range doc.Pages {
		page := &doc.Pages[i]
		tokens := counter(page.Text.Markdown)

		if tokens > maxTokensPerPage {
			flush()
			for _, slice := range sliceMarkdown(page.Text.Markdown, maxTokensPerPage) {
				out.Pages = append(out.Pages, models.Page{
					Index:      len(out.Pages),
					Text:       models.PageText{Markdown: slice},
					Images:     append([]models.ImageRegion(nil), page.Images...),
					Dimensions: page.Dimensions,
				})
			}
			continue
		}

		if buf != nil && buf.tokens+tokens > maxTokensPerPage {
			flush()
		}
		if buf == nil {
			buf = &accumulator{dimensions: page.Dimensions}
		}
		buf.add(page, tokens)
	}
	flush()
	return out, nil
}

// accumulator gathers consecutive pages into one pending batch.
type accumulator struct {
	markdown   []string
	html       []string
	plain      []string
	images     []models.ImageRegion
	dimensions *models.PageDimensions
	tokens     int
}

func (a *accumulator) add(page *models.Page, tokens int) {
	a.markdown = append(a.markdown, page.Text.Markdown)
	if page.Text.HTML != "" {
		a.html = append(a.html, page.Text.HTML)
	}
	if page.Text.Plain != "" {
		a.plain = append(a.plain, page.Text.Plain)
	}
	a.images = append(a.images, page.Images...)
	a.tokens += tokens
}

func (a *accumulator) page(index int) models.Page {
	return models.Page{
		Index: index,
		Text: models.PageText{
			Markdown: strings.Join(a.markdown, "\n"),
			HTML:     strings.Join(a.html, "\n"),
			Plain:    strings.Join(a.plain, "\n"),
		},
		Images:     a.images,
		Dimensions: a.dimensions,
	}
}

// sliceMarkdown cuts md into consecutive slices of at most size characters.
// The split is by runes, never inside a multi-byte character, so every
// slice is valid UTF-8 and the slices concatenate back to the original.
func sliceMarkdown(md string, size int) []string {
	runes := []rune(md)
	var slices []string
	for len(runes) > size {
		slices = append(slices, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		slices = append(slices, string(runes))
	}
	return slices
}
