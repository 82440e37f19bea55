package ollama

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"orbit/pkg/llm"

	"github.com/ollama/ollama/api"
)

// Client generates completions through a local or remote Ollama server.
type Client struct {
	client  *api.Client
	model   string
	options map[string]any
}

// NewClient creates an Ollama client. An empty baseURL falls back to
// OLLAMA_HOST.
func NewClient(model string, baseURL string, options map[string]any) (*Client, error) {
	// Custom Transport to ensure no timeouts are imposed by the client;
	// callers bound requests with their context.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	httpClient := &http.Client{Transport: &JSONFixingRoundTripper{Proxied: transport}}

	var client *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		client = api.NewClient(u, httpClient)
	} else {
		var err error
		if client, err = api.ClientFromEnvironment(); err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)
	return &Client{client: client, model: model, options: options}, nil
}

func (o *Client) Provider() string {
	return "ollama"
}

func (o *Client) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  instruction,
		Options: o.options,
		Stream:  &stream,
	}

	var out strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		if resp.Done {
			if resp.DoneReason == "length" {
				slog.WarnContext(ctx, "Response truncated due to length", "provider", "ollama", "model", o.model)
			}
			llm.LogUsage(ctx, "ollama", o.model, llm.Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				StopReason:       resp.DoneReason,
			})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama %s: %w", o.model, err)
	}
	return out.String(), nil
}

// IsTransientError reports connection failures and overload.
func (o *Client) IsTransientError(err error) bool {
	return llm.ContainsAny(err, "connection refused", "connection reset", "overloaded")
}

//----------------------------------------------------------------
// JSONFixingRoundTripper - Interceptor that fixes illegal JSON escapes
//----------------------------------------------------------------

// JSONFixingRoundTripper intercepts response and fixes illegal escapes (e.g., \$)
type JSONFixingRoundTripper struct {
	Proxied http.RoundTripper
}

func (j *JSONFixingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := j.Proxied.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || strings.Contains(ct, "application/x-ndjson") {
		resp.Body = &jsonFixingReadCloser{body: resp.Body}
	}
	return resp, nil
}

type jsonFixingReadCloser struct {
	body io.ReadCloser
}

var illegalEscapeRegex = regexp.MustCompile(`\\([^\/\\bfnrtu"])`)

func (j *jsonFixingReadCloser) Read(p []byte) (n int, err error) {
	n, err = j.body.Read(p)
	if n > 0 {
		// 移除非法跳脫字元，例如將 \$ 轉為 $
		fixed := illegalEscapeRegex.ReplaceAll(p[:n], []byte("$1"))
		if len(fixed) < n {
			n = copy(p, fixed)
		}
	}
	return n, err
}

func (j *jsonFixingReadCloser) Close() error {
	return j.body.Close()
}
