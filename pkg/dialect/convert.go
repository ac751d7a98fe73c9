package dialect

import "encoding/json"

var (
	emptyDelta = json.RawMessage("{}")
	zeroUsage  = json.RawMessage(`{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}`)
)

// ConvertDelta maps an upstream delta to a caller chunk labeled with the
// caller-requested model. It never fails: a missing delta becomes {} and a
// missing finish reason stays null.
//
// A delta without choices (a usage-only chunk) converts to a chunk with an
// empty choices list. Usage is attached only when includeUsage is set.
func ConvertDelta(d *UpstreamDelta, model string, includeUsage bool) *ChatCompletionChunk {
	chunk := &ChatCompletionChunk{
		ID:      d.ID,
		Object:  ObjectChunk,
		Created: d.Created,
		Model:   model,
		Choices: []ChunkChoice{},
	}

	if d.HasChoice {
		delta := d.Delta
		if delta == nil {
			delta = emptyDelta
		}
		chunk.Choices = append(chunk.Choices, ChunkChoice{
			Index:        0,
			Delta:        delta,
			FinishReason: d.FinishReason,
		})
	}

	if includeUsage {
		chunk.Usage = d.RawUsage
	}

	return chunk
}

// ConvertResponse maps a complete upstream response to a unary caller
// response labeled with the caller-requested model. Upstream usage is copied
// as sent; a zeroed record stands in when upstream has none.
func ConvertResponse(r *UpstreamResponse, model string) *ChatCompletion {
	finish := r.FinishReason
	if finish == "" {
		finish = DefaultFinishReason
	}

	usage := r.RawUsage
	if usage == nil {
		usage = zeroUsage
	}

	return &ChatCompletion{
		ID:      r.ID,
		Object:  ObjectCompletion,
		Created: r.Created,
		Model:   model,
		Choices: []CompletionChoice{{
			Index: 0,
			Message: Message{
				Role:             RoleAssistant,
				Content:          r.Content,
				ReasoningContent: r.ReasoningContent,
			},
			FinishReason: finish,
		}},
		Usage: usage,
	}
}
