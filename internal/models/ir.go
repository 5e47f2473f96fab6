package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the intermediate representation of one OCR'd input. It is
// built once from the raw OCR response, mutated in place by the translation
// and embedding steps, and discarded after the result is persisted.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Pages    []Page   `json:"pages"`
}

// Metadata carries document-level OCR metadata.
type Metadata struct {
	Model string `json:"model"`
}

// Page is a single source page (or, after batching, one token-bounded batch
// assembled from one or more source pages).
type Page struct {
	Index      int             `json:"index"`
	Text       PageText        `json:"text"`
	Images     []ImageRegion   `json:"images,omitempty"`
	Dimensions *PageDimensions `json:"dimensions,omitempty"`
}

// PageText holds the textual renditions of a page. Markdown is always
// present; HTML is filled in by the generation step.
type PageText struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
	Plain    string `json:"plain,omitempty"`
}

// ImageRegion is an OCR-detected image with its inline payload. Order
// within a page is the OCR's insertion order and is preserved by batching.
type ImageRegion struct {
	ID          string      `json:"id"`
	BoundingBox BoundingBox `json:"boundingBox"`
	ImageBase64 string      `json:"imageBase64,omitempty"`
}

// BoundingBox is the image region's location on the page, in pixels.
type BoundingBox struct {
	TopLeftX     int `json:"topLeftX"`
	TopLeftY     int `json:"topLeftY"`
	BottomRightX int `json:"bottomRightX"`
	BottomRightY int `json:"bottomRightY"`
}

// PageDimensions are the rendered page dimensions reported by OCR.
type PageDimensions struct {
	DPI    int `json:"dpi,omitempty"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// rawOCRResponse mirrors the OCR vendor's wire format. Image regions arrive
// either with a nested bounding_box object or with flat corner coordinates.
type rawOCRResponse struct {
	Model string    `json:"model"`
	Pages []rawPage `json:"pages"`
}

type rawPage struct {
	Index      int             `json:"index"`
	Markdown   string          `json:"markdown"`
	HTML       string          `json:"html"`
	Plain      string          `json:"plain"`
	Images     []rawImage      `json:"images"`
	Dimensions *PageDimensions `json:"dimensions"`
}

type rawImage struct {
	ID           string       `json:"id"`
	BoundingBox  *rawBoundBox `json:"bounding_box"`
	TopLeftX     int          `json:"top_left_x"`
	TopLeftY     int          `json:"top_left_y"`
	BottomRightX int          `json:"bottom_right_x"`
	BottomRightY int          `json:"bottom_right_y"`
	ImageBase64  string       `json:"image_base64"`
}

type rawBoundBox struct {
	TopLeftX     int `json:"top_left_x"`
	TopLeftY     int `json:"top_left_y"`
	BottomRightX int `json:"bottom_right_x"`
	BottomRightY int `json:"bottom_right_y"`
}

// ParseOCRResponse decodes a raw OCR response into the intermediate
// representation. The model name and every page's markdown must be
// non-blank; anything else is ErrOCRParse.
func ParseOCRResponse(data []byte) (*Document, error) {
	var raw rawOCRResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrOCRParse, err)
	}
	if strings.TrimSpace(raw.Model) == "" {
		return nil, fmt.Errorf("%w: missing model", ErrOCRParse)
	}

	doc := &Document{
		Metadata: Metadata{Model: raw.Model},
		Pages:    make([]Page, 0, len(raw.Pages)),
	}
	for _, rp := range raw.Pages {
		if strings.TrimSpace(rp.Markdown) == "" {
			return nil, fmt.Errorf("%w: page %d has empty markdown", ErrOCRParse, rp.Index)
		}
		page := Page{
			Index: rp.Index,
			Text: PageText{
				Markdown: rp.Markdown,
				HTML:     rp.HTML,
				Plain:    rp.Plain,
			},
			Dimensions: rp.Dimensions,
		}
		for _, ri := range rp.Images {
			region := ImageRegion{
				ID:          ri.ID,
				ImageBase64: ri.ImageBase64,
			}
			if ri.BoundingBox != nil {
				region.BoundingBox = BoundingBox(*ri.BoundingBox)
			} else {
				region.BoundingBox = BoundingBox{
					TopLeftX:     ri.TopLeftX,
					TopLeftY:     ri.TopLeftY,
					BottomRightX: ri.BottomRightX,
					BottomRightY: ri.BottomRightY,
				}
			}
			page.Images = append(page.Images, region)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// ImageDimensionsList renders one "id: WxH px" line per image region of a
// page, for inclusion in the generation system prompt. Empty if the page
// has no images.
func (p *Page) ImageDimensionsList() string {
	if len(p.Images) == 0 {
		return ""
	}
	var b strings.Builder
	for _, img := range p.Images {
		w := img.BoundingBox.BottomRightX - img.BoundingBox.TopLeftX
		h := img.BoundingBox.BottomRightY - img.BoundingBox.TopLeftY
		fmt.Fprintf(&b, "%s: %dx%d px\n", img.ID, w, h)
	}
	return strings.TrimRight(b.String(), "\n")
}
