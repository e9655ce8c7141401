// Package generator implements text generators backed by OpenAI-compatible
// chat completion endpoints, including Azure OpenAI deployments.
package generator

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/opencode-ai/genpipe/internal/logging"
	"github.com/spf13/cast"
)

const defaultModel = "gpt-4o-mini"

// StreamingChunk is a piece of a reply delivered while it is being generated.
type StreamingChunk struct {
	Content string
	Meta    map[string]any
}

// StreamingCallback receives every non-empty chunk of a streamed reply.
type StreamingCallback func(StreamingChunk)

// Result holds one reply per returned choice and matching metadata
// (model, index, finish_reason, usage).
type Result struct {
	Replies []string
	Meta    []map[string]any
}

// Generator turns a prompt into replies.
type Generator interface {
	Run(ctx context.Context, prompt string, opts ...RunOption) (*Result, error)
}

type runOptions struct {
	systemPrompt      *string
	streamingCallback StreamingCallback
	generationKwargs  map[string]any
}

type RunOption func(*runOptions)

// WithRunSystemPrompt overrides the component's system prompt for one call.
func WithRunSystemPrompt(prompt string) RunOption {
	return func(o *runOptions) {
		o.systemPrompt = &prompt
	}
}

// WithRunStreamingCallback streams this call to cb.
func WithRunStreamingCallback(cb StreamingCallback) RunOption {
	return func(o *runOptions) {
		o.streamingCallback = cb
	}
}

// WithRunGenerationKwargs adds request parameters for one call. Keys given
// here win over the component's own generation kwargs.
func WithRunGenerationKwargs(kwargs map[string]any) RunOption {
	return func(o *runOptions) {
		o.generationKwargs = kwargs
	}
}

// chatGenerator is the chat-completion behavior shared by the OpenAI and
// Azure OpenAI components. Each component builds its own client and hands it
// over; everything after construction lives here.
type chatGenerator struct {
	client            openai.Client
	model             string
	systemPrompt      string
	generationKwargs  map[string]any
	streamingCallback StreamingCallback
}

func (g *chatGenerator) Run(ctx context.Context, prompt string, opts ...RunOption) (*Result, error) {
	ro := runOptions{}
	for _, o := range opts {
		o(&ro)
	}

	systemPrompt := g.systemPrompt
	if ro.systemPrompt != nil {
		systemPrompt = *ro.systemPrompt
	}
	callback := g.streamingCallback
	if ro.streamingCallback != nil {
		callback = ro.streamingCallback
	}
	kwargs := maps.Clone(g.generationKwargs)
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	maps.Copy(kwargs, ro.generationKwargs)

	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: messages,
	}
	reqOpts := kwargsOptions(kwargs)

	if callback != nil {
		if n, ok := kwargs["n"]; ok && cast.ToInt(n) > 1 {
			return nil, errors.Configuration("cannot stream multiple responses, set n=1")
		}
		return g.stream(ctx, params, reqOpts, callback)
	}

	logging.Debug("Sending chat completion request", "model", g.model, "kwargs", len(kwargs))
	response, err := g.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, choice := range response.Choices {
		finishReason := string(choice.FinishReason)
		checkFinishReason(finishReason, int(choice.Index))
		result.Replies = append(result.Replies, choice.Message.Content)
		result.Meta = append(result.Meta, map[string]any{
			"model":         response.Model,
			"index":         int(choice.Index),
			"finish_reason": finishReason,
			"usage":         usageMeta(response.Usage),
		})
	}
	return result, nil
}

func (g *chatGenerator) stream(ctx context.Context, params openai.ChatCompletionNewParams, reqOpts []option.RequestOption, callback StreamingCallback) (*Result, error) {
	logging.Debug("Streaming chat completion request", "model", g.model)
	stream := g.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	defer stream.Close()

	var (
		content      strings.Builder
		model        string
		finishReason string
		usage        openai.CompletionUsage
	)
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage.TotalTokens > 0 {
			usage = chunk.Usage
		}
		// Azure sends a leading chunk with no choices carrying filter results.
		for _, choice := range chunk.Choices {
			if fr := string(choice.FinishReason); fr != "" {
				finishReason = fr
			}
			if choice.Delta.Content == "" {
				continue
			}
			content.WriteString(choice.Delta.Content)
			callback(StreamingChunk{
				Content: choice.Delta.Content,
				Meta: map[string]any{
					"model":         chunk.Model,
					"index":         int(choice.Index),
					"finish_reason": string(choice.FinishReason),
				},
			})
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	checkFinishReason(finishReason, 0)
	return &Result{
		Replies: []string{content.String()},
		Meta: []map[string]any{{
			"model":         model,
			"index":         0,
			"finish_reason": finishReason,
			"usage":         usageMeta(usage),
		}},
	}, nil
}

// kwargsOptions sends every generation kwarg as a top-level request body
// field, in sorted key order.
func kwargsOptions(kwargs map[string]any) []option.RequestOption {
	keys := slices.Sorted(maps.Keys(kwargs))
	opts := make([]option.RequestOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, option.WithJSONSet(k, kwargs[k]))
	}
	return opts
}

func usageMeta(usage openai.CompletionUsage) map[string]any {
	return map[string]any{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
}

func checkFinishReason(reason string, index int) {
	switch reason {
	case "length":
		logging.Warn("The completion was truncated before reaching a natural stopping point. Increase max_tokens to allow longer replies.", "index", index)
	case "content_filter":
		logging.Warn("The completion was truncated because its content was flagged by the content filter.", "index", index)
	}
}
