package commentary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jason-s-yu/loto/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var ErrNoAPIKey = errors.New("commentary api key not set")

const promptTemplate = `Bạn là một MC hoạt náo viên vui tính trong trò chơi Lô tô của Việt Nam.
Số vừa bốc được là: %d.
Hãy tạo một câu rao lô tô ngắn (1-2 câu), hài hước hoặc vần điệu liên quan đến số %d.
Chỉ trả về nội dung câu rao, không thêm dẫn dắt.
Ví dụ số 1: "Gì ra con mấy, con mấy gì ra. Cờ ra con mấy, con mấy gì ra. Trúc xinh trúc mọc đầu đình, em xinh em đứng một mình cũng xinh. Là con số 1, là con số 1."`

// LLM asks an OpenAI-compatible chat endpoint for a rhyme.
type LLM struct {
	client openai.Client
	model  string
}

// NewLLM builds a generator from cfg. It fails when no API key is configured.
func NewLLM(cfg config.Commentary) (*LLM, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &LLM{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

func (l *LLM) Generate(ctx context.Context, n int) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(promptTemplate, n, n)),
		},
		Model: openai.ChatModel(l.model),
	})
	if err != nil {
		return "", fmt.Errorf("commentary for %d: %w", n, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
