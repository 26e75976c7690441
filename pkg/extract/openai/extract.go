package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/trellis-kg/trellis/pkg/extract"

	"github.com/openai/openai-go/v3"
)

// Extract sends chunk text to the extraction model and parses the
// structured response into a candidate graph. The response format is
// enforced with a JSON schema; malformed output is repaired before
// parsing.
func (c *Client) Extract(ctx context.Context, text string) (extract.Candidates, error) {
	var out extract.Candidates

	schema := extract.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "candidate_graph",
		Description: openai.String("Entities and relations extracted from the text"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.extractionModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extract.ExtractionPrompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Temperature: openai.Float(0.1),
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return out, err
	}
	defer c.reqLock.Release(1)

	response, err := c.ChatClient.Chat.Completions.New(rCtx, body)
	if err != nil {
		return out, err
	}

	if len(response.Choices) == 0 {
		return out, fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return out, fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}

	if err := extract.UnmarshalFlexible(message, &out); err != nil {
		return extract.Candidates{}, err
	}
	return out, nil
}

// Summarize condenses the given text with the summary model.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.summaryModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extract.SummaryPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0.3),
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	response, err := c.ChatClient.Chat.Completions.New(rCtx, body)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	return response.Choices[0].Message.Content, nil
}
