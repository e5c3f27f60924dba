// Package llm provides the answer-generation client used by the chat layer.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"campus-rag-go/internal/config"
)

// MessageWriter receives streamed answer fragments. A *websocket.Conn
// satisfies it directly.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client generates free-text answers from a question and retrieved context.
type Client interface {
	// GenerateAnswer returns the full answer for a question given the
	// concatenated top-ranked chunk texts.
	GenerateAnswer(ctx context.Context, question, context string) (string, error)
	// StreamAnswer streams answer fragments to the writer as they arrive.
	StreamAnswer(ctx context.Context, question, context string, writer MessageWriter) error
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates an LLM client for an OpenAI-compatible endpoint.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// systemRules constrains the model to the retrieved context. Result and
// subject questions get a fixed line-oriented format so the frontend can
// render them consistently.
const systemRules = `You are an academic assistant for college result analysis.

Rules you must follow strictly:
- Use ONLY the provided context. Do not invent or assume missing data.
- If the answer is not found in the context, respond exactly:
  "This information is not available in the provided documents."
- For student result questions (marks, semester result, SGPI, performance),
  return only these lines, omitting fields absent from the context:
  Name: <Student Name>
  Semester: <Semester>
  SGPI: <SGPI>
  Total Marks: <Total Marks>
  Result: <Pass/Fail>
- For subject-specific questions, return only:
  Name: <Student Name>
  Subject: <Subject Code>
  Marks: <Marks>
  Semester: <Semester>
  and a bullet list of "Name - Marks" when multiple students match.
- For analytical questions (toppers, pass percentage, above/below a mark),
  return a structured bullet list computed only from the context.
- For general questions, answer clearly in Markdown; tables only if required.`

func (c *openAICompatibleClient) buildMessages(question, contextText string) []chatMessage {
	user := fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION:\n%s", contextText, question)
	return []chatMessage{
		{Role: "system", Content: systemRules},
		{Role: "user", Content: user},
	}
}

func (c *openAICompatibleClient) newRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		body.Temperature = &t
	}
	if c.cfg.MaxTokens != 0 {
		m := c.cfg.MaxTokens
		body.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return req, nil
}

// GenerateAnswer calls the chat completions API synchronously.
func (c *openAICompatibleClient) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	req, err := c.newRequest(ctx, chatRequest{
		Model:    c.cfg.Model,
		Messages: c.buildMessages(question, contextText),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// StreamAnswer calls the chat completions API with SSE streaming and writes
// each delta to the writer as a text message.
func (c *openAICompatibleClient) StreamAnswer(ctx context.Context, question, contextText string, writer MessageWriter) error {
	req, err := c.newRequest(ctx, chatRequest{
		Model:    c.cfg.Model,
		Messages: c.buildMessages(question, contextText),
		Stream:   true,
	})
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk chatStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		// messageType 1 is websocket.TextMessage.
		if err := writer.WriteMessage(1, []byte(chunk.Choices[0].Delta.Content)); err != nil {
			return fmt.Errorf("failed to write stream fragment: %w", err)
		}
	}

	return nil
}
