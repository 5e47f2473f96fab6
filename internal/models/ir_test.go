package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOCRResponse(t *testing.T) {
	raw := []byte(`{
		"model": "mistral-ocr-latest",
		"pages": [
			{
				"index": 0,
				"markdown": "# Page one\n\n![chart](img-0.jpeg)",
				"images": [
					{
						"id": "img-0.jpeg",
						"top_left_x": 10,
						"top_left_y": 20,
						"bottom_right_x": 110,
						"bottom_right_y": 220,
						"image_base64": "YWJj"
					}
				],
				"dimensions": {"dpi": 200, "height": 800, "width": 600}
			},
			{
				"index": 1,
				"markdown": "Page two"
			}
		]
	}`)

	doc, err := ParseOCRResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "mistral-ocr-latest", doc.Metadata.Model)
	require.Len(t, doc.Pages, 2)

	first := doc.Pages[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "# Page one\n\n![chart](img-0.jpeg)", first.Text.Markdown)
	require.Len(t, first.Images, 1)
	assert.Equal(t, "img-0.jpeg", first.Images[0].ID)
	assert.Equal(t, BoundingBox{TopLeftX: 10, TopLeftY: 20, BottomRightX: 110, BottomRightY: 220}, first.Images[0].BoundingBox)
	assert.Equal(t, "YWJj", first.Images[0].ImageBase64)
	require.NotNil(t, first.Dimensions)
	assert.Equal(t, 600, first.Dimensions.Width)

	second := doc.Pages[1]
	assert.Equal(t, 1, second.Index)
	assert.Empty(t, second.Images)
	assert.Nil(t, second.Dimensions)
}

func TestParseOCRResponseNestedBoundingBox(t *testing.T) {
	raw := []byte(`{
		"model": "mistral-ocr-latest",
		"pages": [
			{
				"index": 0,
				"markdown": "text",
				"images": [
					{
						"id": "img-0.jpeg",
						"bounding_box": {
							"top_left_x": 1,
							"top_left_y": 2,
							"bottom_right_x": 3,
							"bottom_right_y": 4
						}
					}
				]
			}
		]
	}`)

	doc, err := ParseOCRResponse(raw)
	require.NoError(t, err)
	require.Len(t, doc.Pages[0].Images, 1)
	assert.Equal(t, BoundingBox{TopLeftX: 1, TopLeftY: 2, BottomRightX: 3, BottomRightY: 4}, doc.Pages[0].Images[0].BoundingBox)
}

func TestParseOCRResponseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"missing model", `{"pages": [{"index": 0, "markdown": "text"}]}`},
		{"blank model", `{"model": "  ", "pages": []}`},
		{"blank page markdown", `{"model": "m", "pages": [{"index": 0, "markdown": "   "}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOCRResponse([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOCRParse)
		})
	}
}

func TestImageDimensionsList(t *testing.T) {
	page := Page{
		Images: []ImageRegion{
			{ID: "img-0.jpeg", BoundingBox: BoundingBox{TopLeftX: 10, TopLeftY: 10, BottomRightX: 110, BottomRightY: 60}},
			{ID: "img-1.jpeg", BoundingBox: BoundingBox{BottomRightX: 300, BottomRightY: 200}},
		},
	}
	assert.Equal(t, "img-0.jpeg: 100x50 px\nimg-1.jpeg: 300x200 px", page.ImageDimensionsList())

	empty := Page{}
	assert.Empty(t, empty.ImageDimensionsList())
}

func TestStateProgress(t *testing.T) {
	assert.Equal(t, 0, StateStarted.Progress())
	assert.Equal(t, 50, StateTranslating.Progress())
	assert.Equal(t, 100, StateComplete.Progress())
	assert.Equal(t, -1, StateError.Progress())
	assert.Equal(t, -1, State("bogus").Progress())

	assert.True(t, StateComplete.Terminal())
	assert.True(t, StateError.Terminal())
	assert.False(t, StateHTMLComplete.Terminal())
}
