package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/neonpulse/internal/line"
	"github.com/yuin/goldmark"
)

// ErrAPIKeyMissing 表示未配置文本生成所需的 API Key。
var ErrAPIKeyMissing = errors.New("api key is required")

const (
	defaultEnrichModel       = "gpt-4o-mini"
	defaultEnrichBaseURL     = "https://api.openai.com/v1"
	defaultEnrichTimeout     = 10 * time.Second
	defaultEnrichMaxTokens   = 200
	defaultEnrichTemperature = 0.7

	encouragementSystemPrompt = "你是一個溫暖簡潔的健康教練，根據當日數據用繁體中文寫一兩句鼓勵的話，不要列點。"
	tipSystemPrompt           = "你是一個健康教練，針對使用者今天最薄弱的一項指標，用繁體中文給一條具體可行的小建議，不超過兩句。"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EnrichmentService 在主回复路径之外生成教练文案：
// 两次独立的模型调用（鼓励语、改进建议）各自限时、各自失败，
// 任一成功就尝试推送一条 LINE 消息。失败只记日志，不重试、
// 不反馈给触发它的请求，也没有取消机制。
type EnrichmentService struct {
	http     httpDoer
	apiKey   string
	baseURL  string
	model    string
	timeout  time.Duration
	push     *line.Client
	pushTo   string
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewEnrichmentService 构造 EnrichmentService；push 或 pushTo 为空时跳过推送。
func NewEnrichmentService(apiKey string, push *line.Client, pushTo string) *EnrichmentService {
	return &EnrichmentService{
		http:     &http.Client{Timeout: defaultEnrichTimeout},
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  defaultEnrichBaseURL,
		model:    defaultEnrichModel,
		timeout:  defaultEnrichTimeout,
		push:     push,
		pushTo:   strings.TrimSpace(pushTo),
		markdown: goldmark.New(),
		policy:   bluemonday.UGCPolicy(),
	}
}

// SetHTTPClient 替换 HTTP 客户端，主要面向测试场景。
func (s *EnrichmentService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.http = &http.Client{Timeout: defaultEnrichTimeout}
		return
	}
	s.http = client
}

// SetBaseURL 覆盖模型接口的基础地址，便于测试或自定义代理。
func (s *EnrichmentService) SetBaseURL(base string) {
	s.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// SetModel 指定使用的模型名称。
func (s *EnrichmentService) SetModel(model string) {
	model = strings.TrimSpace(model)
	if model != "" {
		s.model = model
	}
}

// Dispatch 以后台协程派发一次尽力而为的教练推送，立即返回。
func (s *EnrichmentService) Dispatch(stats DailyStats, streak int) {
	if s.apiKey == "" {
		return
	}

	summary := fmt.Sprintf(
		"日期 %s：喝水 %d 杯、起身 %d 次、運動 %d 分鐘（約 %d 卡），目前連續達標 %d 天。",
		stats.Date, stats.HydrationCount, stats.PostureCount,
		stats.ExerciseMinutes, stats.ExerciseCalories, streak,
	)

	go func() {
		var parts []string

		if text, err := s.generateWithTimeout(encouragementSystemPrompt, summary); err != nil {
			log.Printf("enrichment: encouragement failed: %v", err)
		} else if text != "" {
			parts = append(parts, text)
		}

		if text, err := s.generateWithTimeout(tipSystemPrompt, summary); err != nil {
			log.Printf("enrichment: tip failed: %v", err)
		} else if text != "" {
			parts = append(parts, text)
		}

		if len(parts) == 0 || s.push == nil || s.pushTo == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.push.Push(ctx, s.pushTo, line.TextMessage(strings.Join(parts, "\n\n"))); err != nil {
			log.Printf("enrichment: push failed: %v", err)
		}
	}()
}

func (s *EnrichmentService) generateWithTimeout(systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.Generate(ctx, systemPrompt, userPrompt)
}

// Generate 调用 OpenAI 风格的 chat completions 接口生成一段文本。
func (s *EnrichmentService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s.apiKey == "" {
		return "", ErrAPIKeyMissing
	}

	payload := chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(systemPrompt)},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   defaultEnrichMaxTokens,
		Temperature: defaultEnrichTemperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	base := s.baseURL
	if base == "" {
		base = defaultEnrichBaseURL
	}
	endpoint := strings.TrimRight(base, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(completion.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("chat api error: %s", msg)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// RenderCoachHTML 把模型输出的 Markdown 渲染为净化过的 HTML，供看板展示。
func (s *EnrichmentService) RenderCoachHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render coach text: %w", err)
	}
	return s.policy.Sanitize(buf.String()), nil
}
