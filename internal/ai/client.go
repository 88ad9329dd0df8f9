package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"trade-engine/internal/config"
)

// Client 封装 OpenAI 调用逻辑，用于生成交易说明文本。
type Client struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewClient 使用给定配置创建 AI 客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}
	sdkConfig.HTTPClient = httpClient
	client := openai.NewClientWithConfig(sdkConfig)

	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    client,
	}, nil
}

// TradeSummary 描述需要生成说明的委托要素。
type TradeSummary struct {
	Strategy string
	Symbol   string
	Side     string
	Quantity string
}

// GenerateRationale 为一笔委托生成一段适合写进日志的简短说明。
func (c *Client) GenerateRationale(ctx context.Context, summary TradeSummary) (string, error) {
	if c.cfg.Model == "" {
		return "", errors.New("openai model 不能为空")
	}

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a professional financial assistant.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildRationalePrompt(summary),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.Error(err))
		return "", fmt.Errorf("调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", errors.New("OpenAI 返回结果为空")
	}

	rationale := strings.TrimSpace(response.Choices[0].Message.Content)
	if rationale == "" {
		return "", errors.New("OpenAI 返回内容为空")
	}

	c.logger.Info("交易说明生成成功",
		zap.String("strategy", summary.Strategy),
		zap.String("symbol", summary.Symbol),
	)

	return rationale, nil
}

func buildRationalePrompt(summary TradeSummary) string {
	var b strings.Builder
	b.WriteString("Generate a short, concise, and professional-sounding rationale for a trading order ")
	b.WriteString("with the following parameters: ")
	fmt.Fprintf(&b, "Strategy: %s, Symbol: %s, Side: %s, Amount: %s. ",
		summary.Strategy, summary.Symbol, summary.Side, summary.Quantity)
	b.WriteString("The rationale should be suitable for a log entry.")
	return b.String()
}
