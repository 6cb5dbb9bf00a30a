// ABOUTME: OpenAI assistants-API adapter implementing the ai.Client seam.
// ABOUTME: Translates API errors into the typed taxonomy before they escape.

// Package openaiclient adapts the OpenAI assistants API to ai.Client.
// Nothing outside this package imports the vendor SDK.
package openaiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/2389/fold-assistant/internal/ai"
)

// Config holds the adapter's immutable settings.
type Config struct {
	APIKey       string
	ChatModel    string // vision-capable chat model for image description
	SpeechModel  openai.SpeechModel
	SpeechVoice  openai.SpeechVoice
	ImageModel   string
	WhisperModel string
}

// DefaultConfig returns the adapter defaults for the given API key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:       apiKey,
		ChatModel:    openai.GPT4o,
		SpeechModel:  openai.TTSModel1,
		SpeechVoice:  openai.VoiceNova,
		ImageModel:   openai.CreateImageModelDallE3,
		WhisperModel: openai.Whisper1,
	}
}

// Client implements ai.Client over the OpenAI API.
type Client struct {
	api *openai.Client
	cfg Config
}

// New creates the adapter.
func New(cfg Config) *Client {
	return &Client{api: openai.NewClient(cfg.APIKey), cfg: cfg}
}

var _ ai.Client = (*Client)(nil)

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", wrap("creating thread", err)
	}
	return thread.ID, nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := c.api.DeleteThread(ctx, threadID); err != nil {
		return wrap("deleting thread", err)
	}
	return nil
}

func (c *Client) AppendMessage(ctx context.Context, threadID, role, content string) error {
	_, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    role,
		Content: content,
	})
	if err != nil {
		return wrap("appending message", err)
	}
	return nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*ai.Run, error) {
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, wrap("creating run", err)
	}
	return convertRun(run), nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*ai.Run, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, wrap("retrieving run", err)
	}
	return convertRun(run), nil
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.api.CancelRun(ctx, threadID, runID); err != nil {
		return wrap("cancelling run", err)
	}
	return nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ai.ToolOutput) error {
	converted := make([]openai.ToolOutput, len(outputs))
	for i, out := range outputs {
		converted[i] = openai.ToolOutput{ToolCallID: out.CallID, Output: out.Output}
	}
	_, err := c.api.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: converted,
	})
	if err != nil {
		return wrap("submitting tool outputs", err)
	}
	return nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]ai.Message, error) {
	list, err := c.api.ListMessage(ctx, threadID, &limit, nil, nil, nil, nil)
	if err != nil {
		return nil, wrap("listing messages", err)
	}

	messages := make([]ai.Message, 0, len(list.Messages))
	for _, msg := range list.Messages {
		messages = append(messages, convertMessage(msg))
	}
	return messages, nil
}

func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	content, err := c.api.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, wrap("downloading file", err)
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading file content: %w", err)
	}
	return data, nil
}

func (c *Client) SynthesizeVoice(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: c.cfg.SpeechModel,
		Input: text,
		Voice: c.cfg.SpeechVoice,
	})
	if err != nil {
		return nil, wrap("synthesizing voice", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading speech audio: %w", err)
	}
	return data, nil
}

func (c *Client) TranscribeVoice(ctx context.Context, filePath string) (string, int64, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.WhisperModel,
		FilePath: filePath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", 0, wrap("transcribing voice", err)
	}
	// Duration is billed rounded to the nearest second.
	return resp.Text, int64(math.Round(resp.Duration)), nil
}

func (c *Client) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	if prompt == "" {
		prompt = "Describe this image."
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", wrap("describing image", err)
	}
	if len(resp.Choices) == 0 {
		return "", &ai.Error{Code: ai.CodeUnknown, Message: "image description returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, string, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", "", wrap("generating image", err)
	}
	if len(resp.Data) == 0 {
		return "", "", &ai.Error{Code: ai.CodeUnknown, Message: "image generation returned no data"}
	}
	return resp.Data[0].URL, resp.Data[0].RevisedPrompt, nil
}

func convertRun(run openai.Run) *ai.Run {
	converted := &ai.Run{
		ID:        run.ID,
		ThreadID:  run.ThreadID,
		Status:    ai.RunStatus(run.Status),
		StartedAt: time.Unix(run.CreatedAt, 0),
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, ai.ToolCall{
				CallID:        call.ID,
				Name:          call.Function.Name,
				ArgumentsJSON: call.Function.Arguments,
			})
		}
	}
	return converted
}

func convertMessage(msg openai.Message) ai.Message {
	converted := ai.Message{ID: msg.ID, Role: string(msg.Role)}
	for _, content := range msg.Content {
		switch {
		case content.Text != nil:
			item := ai.Content{Type: ai.ContentText, Text: content.Text.Value}
			item.Annotations = convertAnnotations(content.Text.Annotations)
			converted.Contents = append(converted.Contents, item)
		case content.ImageFile != nil:
			converted.Contents = append(converted.Contents, ai.Content{
				Type:   ai.ContentImageFile,
				FileID: content.ImageFile.FileID,
			})
		}
	}
	return converted
}

// annotationPayload mirrors the wire shape of a file-path annotation.
// The SDK exposes annotations as untyped values, so each one is
// round-tripped through JSON.
type annotationPayload struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	FilePath struct {
		FileID string `json:"file_id"`
	} `json:"file_path"`
}

func convertAnnotations(raw []any) []ai.Annotation {
	var annotations []ai.Annotation
	for _, entry := range raw {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		var payload annotationPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}
		if payload.Type != "file_path" || payload.FilePath.FileID == "" {
			continue
		}
		annotations = append(annotations, ai.Annotation{
			Text:   payload.Text,
			FileID: payload.FilePath.FileID,
		})
	}
	return annotations
}
