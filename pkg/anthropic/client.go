// Package anthropic is the Messages API client behind the Navy assistant.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// CacheHour keeps a cached system prompt warm for an hour.
const CacheHour = "1h"

// Client sends a single Messages API call.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is one assistant call. When SystemCacheTTL is set ("5m"
// or "1h") the system prompt becomes a cache breakpoint.
type MessageRequest struct {
	Model          string
	MaxTokens      int64
	System         string
	SystemCacheTTL string
	Messages       []Message
}

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// UserMessage is a user turn with text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// MessageResponse is the reply with its text blocks joined.
type MessageResponse struct {
	ID         string
	Model      string
	StopReason string
	Text       string
	Usage      Usage
}

type sdkClient struct {
	client sdk.Client
}

// NewClient returns a Client for apiKey. opts reach the SDK unchanged.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(opts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, newParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return newResponse(msg), nil
}

func newParams(req MessageRequest) sdk.MessageNewParams {
	p := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  make([]sdk.MessageParam, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			p.Messages = append(p.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		} else {
			p.Messages = append(p.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	if req.System == "" {
		return p
	}

	system := sdk.TextBlockParam{Text: req.System}
	if req.SystemCacheTTL != "" {
		cc := sdk.NewCacheControlEphemeralParam()
		cc.TTL = sdk.CacheControlEphemeralTTL(req.SystemCacheTTL)
		system.CacheControl = cc
	}
	p.System = []sdk.TextBlockParam{system}
	return p
}

func newResponse(msg *sdk.Message) *MessageResponse {
	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Text:       text.String(),
		Usage: Usage{
			Input:      msg.Usage.InputTokens,
			Output:     msg.Usage.OutputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
		},
	}
}
