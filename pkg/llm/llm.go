package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json 用於 package llm 內部的 JSON 處理，統一使用 json-iterator
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyResponse is returned when a backend answered with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Usage 定義通用的用量統計結構
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage 以 debug 等級輸出用量統計
func LogUsage(ctx context.Context, provider, model string, usage Usage) {
	slog.DebugContext(ctx, "Backend usage",
		"provider", provider,
		"model", model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"total_tokens", usage.PromptTokens+usage.CompletionTokens,
		"stop_reason", usage.StopReason,
	)
}

// Generator 通用生成式後端介面
type Generator interface {
	// Generate sends one prompt with a system instruction and returns the
	// complete text answer.
	Generate(ctx context.Context, prompt, instruction string) (string, error)

	// IsTransientError 判斷是否為暫時性錯誤 (如 503, Rate Limit)
	IsTransientError(err error) bool

	// Provider names the backend, e.g. "ollama".
	Provider() string
}

// FallbackGenerator 支援多個 Generator 分級嘗試
type FallbackGenerator struct {
	Generators []Generator
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackGenerator) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	var lastErr error
	for i, gen := range f.Generators {
		if i > 0 {
			slog.WarnContext(ctx, "Previous provider failed, trying fallback", "index", i+1, "provider", gen.Provider())
		}

		// 使用配置的重試次數，若為 0 則至少執行 1 次
		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for retry := 1; retry <= maxRetries; retry++ {
			if retry > 1 {
				slog.InfoContext(ctx, "Retrying provider", "index", i+1, "attempt", retry, "max", maxRetries)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(time.Duration(retry-1) * f.RetryDelay):
				}
			}

			text, err := gen.Generate(ctx, prompt, instruction)
			if err == nil && strings.TrimSpace(text) == "" {
				err = ErrEmptyResponse
			}
			if err == nil {
				return text, nil
			}

			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			if gen.IsTransientError(err) && retry < maxRetries {
				slog.WarnContext(ctx, "Provider failed with transient error", "index", i+1, "error", err)
				continue
			}

			// 非暫時性錯誤，或者已達最大重試次數
			slog.ErrorContext(ctx, "Provider failed", "index", i+1, "provider", gen.Provider(), "error", err)
			break
		}
	}
	return "", fmt.Errorf("all fallback providers failed: %w", lastErr)
}

// IsTransientError 實作 Generator 介面
// FallbackGenerator 的錯誤意味著所有 Child 都失敗了，因此視為非暫時性
func (f *FallbackGenerator) IsTransientError(err error) bool {
	return false
}

func (f *FallbackGenerator) Provider() string {
	names := make([]string, 0, len(f.Generators))
	for _, g := range f.Generators {
		names = append(names, g.Provider())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// ContainsAny reports whether the lower-cased error text contains any of the
// markers. Providers use it to classify transient failures.
func ContainsAny(err error, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
