// Package webhook 将上行数据以签名的 HTTP 回调推送给外部系统
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// StatusError 对端返回非 2xx
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("webhook http %d: %s", e.Code, e.Body) }

// Pusher 发送带签名头的 JSON 请求，网络错误与 5xx 按 Backoff 重试
type Pusher struct {
	Client  *http.Client
	APIKey  string
	Secret  string
	Retries int
	Backoff []time.Duration

	now func() time.Time
}

// NewPusher client 为 nil 时使用 5s 超时的默认客户端
func NewPusher(client *http.Client, apiKey, secret string) *Pusher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Pusher{
		Client:  client,
		APIKey:  apiKey,
		Secret:  secret,
		Retries: 3,
		Backoff: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second},
		now:     time.Now,
	}
}

// Post 推送已序列化的 JSON 正文
func (p *Pusher) Post(ctx context.Context, endpoint string, body []byte) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	ts := p.now().Unix()
	nonce := uuid.NewString()
	sig := Sign(p.Secret, Canonical(http.MethodPost, u.Path, ts, nonce, body))

	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			backoff := p.Backoff[min(attempt-1, len(p.Backoff)-1)]
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		// 每次重试重新构建请求，正文不可复用
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", p.APIKey)
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Nonce", nonce)

		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = &StatusError{Code: resp.StatusCode, Body: string(rb)}
		// 4xx 不重试
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("webhook: no attempt made")
	}
	return lastErr
}
