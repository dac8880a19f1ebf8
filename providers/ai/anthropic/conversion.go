package anthropic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Brucegx/etsy-listing-agent/providers/ai"
)

// Wire structures for the Messages API. Only the fields the pipeline needs
// are modeled; unknown response fields are ignored by encoding/json.

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`

	// type=text
	Text string `json:"text,omitempty"`

	// type=image
	Source *anthropicImageSource `json:"source,omitempty"`

	// type=tool_use (assistant) / tool_result (user)
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      *anthropicUsage         `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// requestToAnthropic converts an ai.ChatRequest to the Messages API wire form.
func requestToAnthropic(request ai.ChatRequest) anthropicRequest {
	req := anthropicRequest{
		Model:     request.Model,
		MaxTokens: defaultMaxTokens,
		System:    request.SystemPrompt,
		Messages:  buildMessages(request.Messages),
	}

	if cfg := request.GenerationConfig; cfg != nil {
		if cfg.MaxTokens > 0 {
			req.MaxTokens = cfg.MaxTokens
		}
		if cfg.Temperature > 0 {
			temp := float64(cfg.Temperature)
			req.Temperature = &temp
		}
		if cfg.TopP > 0 {
			topP := float64(cfg.TopP)
			req.TopP = &topP
		}
	}

	for _, tool := range request.Tools {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	// Anthropic has no native response_format; the schema constraint travels
	// in the system prompt instead.
	if request.ResponseFormat != nil && request.ResponseFormat.OutputSchema != nil {
		schemaText := request.ResponseFormat.OutputSchema.String()
		instruction := "\n\nRespond ONLY with a JSON object matching this JSON Schema, with no surrounding prose:\n" + schemaText
		req.System += instruction
	}

	return req
}

// buildMessages converts generic messages into Anthropic message objects.
//
// Anthropic requires strictly alternating user/assistant turns, and tool
// results must be sent as tool_result content blocks inside a user message.
func buildMessages(messages []ai.Message) []anthropicMessage {
	var result []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleUser, ai.RoleSystem:
			// A stray system message after the first is demoted to user text;
			// the real system prompt travels in the top-level system field.
			result = append(result, anthropicMessage{
				Role:    "user",
				Content: contentBlocksFor(msg),
			})

		case ai.RoleAssistant:
			assistantMsg := anthropicMessage{Role: "assistant"}
			if msg.Content != "" {
				assistantMsg.Content = append(assistantMsg.Content, anthropicContentBlock{
					Type: "text",
					Text: msg.Content,
				})
			}
			for _, toolCall := range msg.ToolCalls {
				assistantMsg.Content = append(assistantMsg.Content, anthropicContentBlock{
					Type:  "tool_use",
					ID:    toolCall.ID,
					Name:  toolCall.Function.Name,
					Input: json.RawMessage(toolCall.Function.Arguments),
				})
			}
			result = append(result, assistantMsg)

		case ai.RoleTool:
			block := anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
			}
			// Merge into the previous user message when it already carries
			// tool results, since the API rejects consecutive user turns.
			if n := len(result); n > 0 && result[n-1].Role == "user" && isToolResultMessage(result[n-1]) {
				result[n-1].Content = append(result[n-1].Content, block)
			} else {
				result = append(result, anthropicMessage{
					Role:    "user",
					Content: []anthropicContentBlock{block},
				})
			}
		}
	}

	return result
}

func isToolResultMessage(msg anthropicMessage) bool {
	return len(msg.Content) > 0 && msg.Content[0].Type == "tool_result"
}

// contentBlocksFor renders a user message as content blocks, expanding
// multimodal parts into text and image blocks.
func contentBlocksFor(msg ai.Message) []anthropicContentBlock {
	if len(msg.Parts) == 0 {
		return []anthropicContentBlock{{Type: "text", Text: msg.Content}}
	}

	blocks := make([]anthropicContentBlock, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case ai.ContentImage:
			if part.Image == nil {
				continue
			}
			source := &anthropicImageSource{}
			if part.Image.URL != "" {
				source.Type = "url"
				source.URL = part.Image.URL
			} else {
				source.Type = "base64"
				source.MediaType = part.Image.MediaType
				source.Data = part.Image.Base64
			}
			blocks = append(blocks, anthropicContentBlock{Type: "image", Source: source})
		default:
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: part.Text})
		}
	}
	return blocks
}

// anthropicToGeneric maps an Anthropic response to the provider-agnostic form.
// Text blocks are concatenated; tool_use blocks become tool calls.
func anthropicToGeneric(resp anthropicResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Created:      time.Now().Unix(),
		FinishReason: mapStopReason(resp.StopReason),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ai.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: ai.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		}
	}

	if resp.Usage != nil {
		result.Usage = &ai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}

	return result
}

// mapStopReason normalizes Anthropic stop reasons onto the generic values
// shared with the other providers.
func mapStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	case "":
		return ""
	default:
		return fmt.Sprintf("other:%s", stopReason)
	}
}
