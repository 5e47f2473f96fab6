package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// --- Translation Model Prompts ---

const TranslateSystemPrompt = `You are an expert document translator and layout designer. Your job is to translate the provided markdown content to <target-language> and generate a complete HTML document.
Preserve all formatting, tables, code blocks, and images. For each image, use the provided image ID and dimensions (width x height in px) to set the appropriate attributes in the HTML <img> tags, and set the <img> tag's id attribute to the image's id exactly as provided.

STYLING INSTRUCTIONS:
- Produce a complete HTML document: <!DOCTYPE html>, <html>, <head> with a <style> block, and <body>.
- Maintain an A4 document format with a clean, readable, professional layout.
- Code blocks: preserve formatting and render with monospace styling.
- Tables: keep their structure; normalize merged cells by repeating parent content rather than dropping it.
- Images: use the provided dimensions and place them contextually.

Here is the list of images and their dimensions (image_id: width x height in px):
<image-dimensions-list>

Generate the complete HTML document. Do not add any extra commentary or explanation. Return only the HTML output in <target-language>.`

const TranslateUserPrompt = `Translate the following markdown string to <target-language> and convert it to HTML. Ensure all formatting, tables, code blocks, and images are preserved and properly styled.
For each image, set the HTML <img> tag's id attribute to the image's id as provided in the image list.

<markdown-content>

Return only the complete HTML document in <target-language> without any additional explanations or comments.`

// TranslateSystemPromptFor fills the system prompt template with the
// target language and the page's image-dimension list.
func TranslateSystemPromptFor(targetLang, imageDimensionsList string) string {
	p := strings.ReplaceAll(TranslateSystemPrompt, "<target-language>", targetLang)
	return strings.ReplaceAll(p, "<image-dimensions-list>", imageDimensionsList)
}

// TranslateUserPromptFor fills the user prompt template with the markdown
// content and target language.
func TranslateUserPromptFor(markdown, targetLang string) string {
	p := strings.ReplaceAll(TranslateUserPrompt, "<target-language>", targetLang)
	return strings.ReplaceAll(p, "<markdown-content>", markdown)
}

// VertexClient is the generation collaborator backed by Vertex AI.
type VertexClient struct {
	baseClient *genai.Client
}

// NewVertexClient creates a generation client for the given project/region.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{baseClient: baseClient}, nil
}

// Generate runs one translation/render call. The response's text parts are
// concatenated and stripped of Markdown code fences; an empty result is
// ErrGenerationParse.
func (c *VertexClient) Generate(ctx context.Context, systemPrompt, userPrompt, modelID string) (*models.GenerationResponse, error) {
	model := c.baseClient.GenerativeModel(modelID)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: response contained no text parts", models.ErrGenerationParse)
	}
	return &models.GenerationResponse{Contents: []string{StripCodeFences(text)}}, nil
}

// EstimateTokens asks the model to count tokens for text, falling back to
// a characters/4 heuristic if the call fails.
func (c *VertexClient) EstimateTokens(ctx context.Context, modelID, text string) int {
	model := c.baseClient.GenerativeModel(modelID)
	resp, err := model.CountTokens(ctx, genai.Text(text))
	if err != nil || resp == nil {
		return len(text) / 4
	}
	return int(resp.TotalTokens)
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// StripCodeFences removes a surrounding ```html / ``` fence pair that
// models often wrap HTML responses in.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```html", "```markdown", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
