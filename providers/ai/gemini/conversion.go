package gemini

import (
	"encoding/base64"
	"fmt"

	"github.com/Brucegx/etsy-listing-agent/providers/ai"
)

// Wire structures for the generateContent API.

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" or "model"
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiGenerationConfig struct {
	Temperature        *float64 `json:"temperature,omitempty"`
	TopP               *float64 `json:"topP,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// requestToGemini converts an ai.ChatRequest to the generateContent wire form.
// The assistant role maps to "model" and the system prompt travels in
// systemInstruction.
func requestToGemini(request ai.ChatRequest, renderImages bool) geminiRequest {
	req := geminiRequest{}

	if request.SystemPrompt != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: request.SystemPrompt}},
		}
	}

	for _, msg := range request.Messages {
		role := "user"
		if msg.Role == ai.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: partsFor(msg),
		})
	}

	cfg := &geminiGenerationConfig{}
	hasConfig := false
	if gc := request.GenerationConfig; gc != nil {
		hasConfig = true
		cfg.MaxOutputTokens = gc.MaxTokens
		if gc.Temperature > 0 {
			temp := float64(gc.Temperature)
			cfg.Temperature = &temp
		}
		if gc.TopP > 0 {
			topP := float64(gc.TopP)
			cfg.TopP = &topP
		}
	}
	if renderImages {
		hasConfig = true
		cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	}
	if hasConfig {
		req.GenerationConfig = cfg
	}

	return req
}

func partsFor(msg ai.Message) []geminiPart {
	if len(msg.Parts) == 0 {
		return []geminiPart{{Text: msg.Content}}
	}

	parts := make([]geminiPart, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case ai.ContentImage:
			if part.Image == nil {
				continue
			}
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{
					MimeType: part.Image.MediaType,
					Data:     part.Image.Base64,
				},
			})
		default:
			parts = append(parts, geminiPart{Text: part.Text})
		}
	}
	return parts
}

// geminiToGeneric maps the first candidate onto the generic response format,
// decoding inline image data into raw bytes.
func geminiToGeneric(resp geminiResponse) (*ai.ChatResponse, error) {
	candidate := resp.Candidates[0]

	result := &ai.ChatResponse{
		FinishReason: candidate.FinishReason,
	}

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			result.Content += part.Text
		}
		if part.InlineData != nil {
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode inline image data: %w", err)
			}
			result.Images = append(result.Images, ai.GeneratedImage{
				MediaType: part.InlineData.MimeType,
				Data:      data,
			})
		}
	}

	if resp.UsageMetadata != nil {
		result.Usage = &ai.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return result, nil
}
