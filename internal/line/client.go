package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrTokenMissing 表示未配置频道访问令牌。
var ErrTokenMissing = errors.New("line channel access token is required")

const defaultBaseURL = "https://api.line.me"

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message 是 LINE Messaging API 的消息对象。
// 文本消息只填 Text；Flex 消息填 AltText 与 Contents。
type Message struct {
	Type     string                 `json:"type"`
	Text     string                 `json:"text,omitempty"`
	AltText  string                 `json:"altText,omitempty"`
	Contents map[string]interface{} `json:"contents,omitempty"`
}

// TextMessage 构造一条文本消息。
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// FlexMessage 构造一条 Flex 消息。
func FlexMessage(altText string, contents map[string]interface{}) Message {
	return Message{Type: "flex", AltText: altText, Contents: contents}
}

// Client 直接封装 Messaging API 的 reply/push 两个端点。
type Client struct {
	http    httpDoer
	token   string
	baseURL string
}

// NewClient 构造 LINE 客户端。
func NewClient(token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		token:   strings.TrimSpace(token),
		baseURL: defaultBaseURL,
	}
}

// SetHTTPClient 替换 HTTP 客户端，主要面向测试场景。
func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
		return
	}
	c.http = client
}

// SetBaseURL 覆盖 API 基础地址，便于测试。
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// Reply 用回复令牌回应一次 webhook 事件。
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	payload := map[string]interface{}{
		"replyToken": replyToken,
		"messages":   messages,
	}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// Push 主动向用户推送消息。
func (c *Client) Push(ctx context.Context, to string, messages ...Message) error {
	payload := map[string]interface{}{
		"to":       to,
		"messages": messages,
	}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	if c.token == "" {
		return ErrTokenMissing
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode line payload: %w", err)
	}

	base := c.baseURL
	if base == "" {
		base = defaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build line request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call line api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("line api error: %s", msg)
	}
	return nil
}
