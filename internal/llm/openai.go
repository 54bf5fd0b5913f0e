package llm

import (
	"context"
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Conversation is a stateful dialogue with the AI service.  Send forwards
// one turn and returns the raw reply text.  Close releases the handle; a
// closed conversation rejects further turns.
type Conversation interface {
	Send(ctx context.Context, text string) (string, error)
	Close() error
}

// Client defines the AI operations the engine and route layer depend on.
type Client interface {
	NewConversation(ctx context.Context) (Conversation, error)
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

// OpenAIClient calls the OpenAI API for chat, transcription, and speech
// synthesis.  Model names fall back to sensible defaults when left empty.
type OpenAIClient struct {
	client          *openai.Client
	chatModel       string
	transcribeModel string
	speechModel     openai.SpeechModel
	voice           openai.SpeechVoice
}

// NewOpenAIClient constructs an OpenAI-backed client.
func NewOpenAIClient(apiKey, chatModel, transcribeModel, speechModel, voice string) *OpenAIClient {
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if transcribeModel == "" {
		transcribeModel = openai.Whisper1
	}
	if speechModel == "" {
		speechModel = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	return &OpenAIClient{
		client:          openai.NewClient(apiKey),
		chatModel:       chatModel,
		transcribeModel: transcribeModel,
		speechModel:     openai.SpeechModel(speechModel),
		voice:           openai.SpeechVoice(voice),
	}
}

// NewConversation opens a fresh dialogue.  The chat completion API is
// stateless, so the handle carries the message history and replays it on
// every turn.
func (c *OpenAIClient) NewConversation(ctx context.Context) (Conversation, error) {
	if c.client == nil {
		return nil, errors.New("openai client not initialized")
	}
	return &conversation{client: c.client, model: c.chatModel}, nil
}

// Transcribe converts an uploaded audio recording into text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Speak synthesizes the given text and returns MP3 audio bytes.
func (c *OpenAIClient) Speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: c.speechModel,
		Input: text,
		Voice: c.voice,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

type conversation struct {
	client *openai.Client
	model  string

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
	closed  bool
}

// Send appends the user turn, calls the chat completion API with the full
// history, and records the assistant reply.  The history is only extended on
// success so a failed turn can be retried.
func (cv *conversation) Send(ctx context.Context, text string) (string, error) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	if cv.closed {
		return "", errors.New("conversation closed")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(cv.history)+1)
	msgs = append(msgs, cv.history...)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	resp, err := cv.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       cv.model,
		Messages:    msgs,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	reply := resp.Choices[0].Message.Content

	cv.history = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}

// Close drops the conversation history.
func (cv *conversation) Close() error {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.closed = true
	cv.history = nil
	return nil
}
