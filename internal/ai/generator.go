// Package ai drives the interaction with the Anthropic completion API,
// including the bounded tool-execution loop.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/campuskit/course-assistant/internal/tools"
)

// maxToolRounds caps the number of tool-execution rounds per query. With the
// cap at 2, a query makes at most 3 API calls: the initial call, one follow-up
// that may request a second tool, and a final call with tools withheld so the
// model must answer in text.
const maxToolRounds = 2

// ToolDispatcher executes a named tool with the raw JSON input from a
// tool_use block and returns the result text for the model.
type ToolDispatcher interface {
	ExecuteTool(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// MessageSender abstracts the completion API call so tests can substitute a
// fake.
type MessageSender interface {
	SendMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// Generator owns all interaction with the completion API for a query: it
// builds requests, interprets responses, runs tool rounds, and returns the
// final answer text.
type Generator struct {
	sender         MessageSender
	model          anthropic.Model
	systemPrompt   string
	maxTokens      int64
	requestTimeout time.Duration
}

// GenerateRequest carries the per-query inputs to Generate.
type GenerateRequest struct {
	// Query is the user's question, already wrapped in any instruction template
	Query string

	// ConversationHistory, when non-empty, is appended to the system prompt
	ConversationHistory string

	// Tools are offered to the model on tool-eligible rounds. Empty means the
	// model can only answer in text
	Tools []anthropic.ToolParam

	// Dispatcher executes requested tools. When nil, tool_use responses fall
	// through to their text content
	Dispatcher ToolDispatcher
}

// NewGenerator creates a Generator. requestTimeout bounds each individual API
// call; zero means 60 seconds.
func NewGenerator(sender MessageSender, model anthropic.Model, systemPrompt string, requestTimeout time.Duration) *Generator {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Generator{
		sender:         sender,
		model:          model,
		systemPrompt:   systemPrompt,
		maxTokens:      800,
		requestTimeout: requestTimeout,
	}
}

// Generate answers a query, executing up to maxToolRounds rounds of tool calls
// along the way. Tool failures are reported to the model as tool results
// rather than aborting the loop; only upstream API failures and unknown-tool
// dispatches return an error.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	system := g.systemPrompt
	if req.ConversationHistory != "" {
		system += "\n\nPrevious conversation:\n" + req.ConversationHistory
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Query)),
	}

	for round := 0; ; round++ {
		// The final round withholds tools so the model must produce text
		toolsEligible := len(req.Tools) > 0 && round < maxToolRounds

		response, err := g.callAPI(ctx, system, messages, req.Tools, toolsEligible)
		if err != nil {
			return "", fmt.Errorf("completion request failed: %w", err)
		}

		if response.StopReason != anthropic.StopReasonToolUse || req.Dispatcher == nil || !toolsEligible {
			return firstText(response)
		}

		messages = append(messages, response.ToParam())

		results, err := g.executeToolUses(ctx, response, req.Dispatcher)
		if err != nil {
			return "", err
		}
		messages = append(messages, anthropic.NewUserMessage(results...))
	}
}

func (g *Generator) callAPI(ctx context.Context, system string, messages []anthropic.MessageParam, toolParams []anthropic.ToolParam, withTools bool) (*anthropic.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: messages,
	}
	if withTools {
		toolUnions := make([]anthropic.ToolUnionParam, 0, len(toolParams))
		for _, tool := range toolParams {
			toolUnions = append(toolUnions, anthropic.ToolUnionParam{OfTool: &tool})
		}
		params.Tools = toolUnions
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}

	return g.sender.SendMessage(ctx, params)
}

// executeToolUses runs every tool_use block in the response, in order, and
// returns the matching tool_result blocks. A failing tool becomes an error
// string in its result so the model can decide how to tell the user; an
// unknown tool name is a programmer error and aborts the query.
func (g *Generator) executeToolUses(ctx context.Context, response *anthropic.Message, dispatcher ToolDispatcher) ([]anthropic.ContentBlockParamUnion, error) {
	results := []anthropic.ContentBlockParamUnion{}
	for _, contentBlock := range response.Content {
		switch block := contentBlock.AsAny().(type) {
		case anthropic.ToolUseBlock:
			log.Printf("Executing tool: %s", block.Name)
			result, err := dispatcher.ExecuteTool(ctx, block.Name, json.RawMessage(block.Input))
			isError := false
			if err != nil {
				var unknown *tools.UnknownToolError
				if errors.As(err, &unknown) {
					return nil, err
				}
				result = fmt.Sprintf("Tool execution error: %s", err)
				isError = true
				log.Printf("Tool %s failed: %v", block.Name, err)
			}
			resultBlock := newToolResultBlockParam(block.ID, result, isError)
			results = append(results, anthropic.ContentBlockParamUnion{OfToolResult: &resultBlock})
		}
	}
	return results, nil
}

// firstText extracts the first text block of a response. When a tool_use
// response could not be acted on, any leading text block is still the best
// answer available.
func firstText(response *anthropic.Message) (string, error) {
	for _, contentBlock := range response.Content {
		switch block := contentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("response contains no text content")
}

// newToolResultBlockParam builds a tool_result block echoing the tool_use id.
func newToolResultBlockParam(toolUseID string, result string, isError bool) anthropic.ToolResultBlockParam {
	return anthropic.ToolResultBlockParam{
		ToolUseID: toolUseID,
		Content: []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: result}},
		},
		IsError: anthropic.Bool(isError),
	}
}
