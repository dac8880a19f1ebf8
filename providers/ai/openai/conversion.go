package openai

import (
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
)

// Wire structures for the Chat Completions API.

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	Tools          []openaiTool          `json:"tools,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
	MaxTokens      int                   `json:"max_completion_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	TopP           *float64              `json:"top_p,omitempty"`
}

type openaiMessage struct {
	Role       string              `json:"role"`
	Content    any                 `json:"content,omitempty"` // string or []openaiContentPart
	ToolCalls  []openaiToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	Name       string              `json:"name,omitempty"`
}

type openaiContentPart struct {
	Type     string          `json:"type"` // "text" or "image_url"
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"` // https URL or data URI
}

type openaiTool struct {
	Type     string             `json:"type"` // "function"
	Function openaiToolFunction `json:"function"`
}

type openaiToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type openaiResponseFormat struct {
	Type       string            `json:"type"` // "json_object" or "json_schema"
	JSONSchema *openaiJSONSchema `json:"json_schema,omitempty"`
}

type openaiJSONSchema struct {
	Name   string `json:"name"`
	Strict bool   `json:"strict,omitempty"`
	Schema any    `json:"schema"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiToolCallFunc `json:"function"`
}

type openaiToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Created int64          `json:"created"`
	Choices []openaiChoice `json:"choices"`
	Usage   *openaiUsage   `json:"usage"`
}

type openaiChoice struct {
	Message      openaiMessageOut `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type openaiMessageOut struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Refusal   string           `json:"refusal,omitempty"`
	ToolCalls []openaiToolCall `json:"tool_calls,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// requestToOpenAI converts an ai.ChatRequest to the Chat Completions wire
// form. The system prompt becomes the leading system message.
func requestToOpenAI(request ai.ChatRequest) openaiRequest {
	req := openaiRequest{Model: request.Model}

	if request.SystemPrompt != "" {
		req.Messages = append(req.Messages, openaiMessage{
			Role:    "system",
			Content: request.SystemPrompt,
		})
	}

	for _, msg := range request.Messages {
		req.Messages = append(req.Messages, messageToOpenAI(msg))
	}

	for _, tool := range request.Tools {
		req.Tools = append(req.Tools, openaiTool{
			Type: "function",
			Function: openaiToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	if rf := request.ResponseFormat; rf != nil && rf.OutputSchema != nil {
		req.ResponseFormat = &openaiResponseFormat{
			Type: "json_schema",
			JSONSchema: &openaiJSONSchema{
				Name:   "response",
				Strict: rf.Strict,
				Schema: rf.OutputSchema,
			},
		}
	}

	if cfg := request.GenerationConfig; cfg != nil {
		req.MaxTokens = cfg.MaxTokens
		if cfg.Temperature > 0 {
			temp := float64(cfg.Temperature)
			req.Temperature = &temp
		}
		if cfg.TopP > 0 {
			topP := float64(cfg.TopP)
			req.TopP = &topP
		}
	}

	return req
}

func messageToOpenAI(msg ai.Message) openaiMessage {
	out := openaiMessage{
		Role:       string(msg.Role),
		ToolCallID: msg.ToolCallID,
		Name:       msg.Name,
	}

	for _, toolCall := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openaiToolCall{
			ID:   toolCall.ID,
			Type: "function",
			Function: openaiToolCallFunc{
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			},
		})
	}

	if len(msg.Parts) == 0 {
		if msg.Content != "" || len(out.ToolCalls) == 0 {
			out.Content = msg.Content
		}
		return out
	}

	parts := make([]openaiContentPart, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case ai.ContentImage:
			if part.Image == nil {
				continue
			}
			url := part.Image.URL
			if url == "" {
				url = "data:" + part.Image.MediaType + ";base64," + part.Image.Base64
			}
			parts = append(parts, openaiContentPart{
				Type:     "image_url",
				ImageURL: &openaiImageURL{URL: url},
			})
		default:
			parts = append(parts, openaiContentPart{Type: "text", Text: part.Text})
		}
	}
	out.Content = parts
	return out
}

// openaiToGeneric maps the first choice of a response onto the generic form.
func openaiToGeneric(resp openaiResponse) *ai.ChatResponse {
	choice := resp.Choices[0]

	result := &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Created:      resp.Created,
		Content:      choice.Message.Content,
		Refusal:      choice.Message.Refusal,
		FinishReason: choice.FinishReason,
	}

	for _, toolCall := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ai.ToolCall{
			ID:   toolCall.ID,
			Type: toolCall.Type,
			Function: ai.ToolCallFunction{
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			},
		})
	}

	if resp.Usage != nil {
		result.Usage = &ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result
}
