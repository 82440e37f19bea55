package responder

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"orbit/pkg/llm"
	"orbit/pkg/messages"
	"orbit/pkg/repo"

	"golang.org/x/sync/errgroup"
)

var (
	//go:embed instructions/orbit.md
	orbitInstruction string
	//go:embed instructions/troubleshooting.md
	troubleshootingInstruction string
)

// Digester is the part of repo.Digester responders use.
type Digester interface {
	Digest(ctx context.Context, source string) (repo.Digest, error)
}

// generate calls gen with an optional per-call timeout.
func generate(ctx context.Context, gen llm.Generator, timeout time.Duration, prompt, instruction string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return gen.Generate(ctx, prompt, instruction)
}

// Orbit answers questions about a single framework repository.
type Orbit struct {
	Generator   llm.Generator
	Digester    Digester
	Repo        string
	Instruction string
	Timeout     time.Duration
}

func (o *Orbit) Handle(ctx context.Context, query string) (messages.Answer, error) {
	d, err := o.Digester.Digest(ctx, o.Repo)
	if err != nil {
		return messages.Answer{}, fmt.Errorf("digest %s: %w", o.Repo, err)
	}

	instruction := orDefault(o.Instruction, orbitInstruction)
	prompt := instruction + "\nHere are the details of the Orbit repository:\n" + d.String() + "\n" + query

	text, err := generate(ctx, o.Generator, o.Timeout, prompt, instruction)
	if err != nil {
		return messages.Answer{}, err
	}
	return messages.Answer{Text: text}, nil
}

// chunkSeparator ends every repository section of a troubleshooting prompt.
const chunkSeparator = "###############"

// Troubleshooting inspects several repositories to diagnose a problem.
type Troubleshooting struct {
	Generator   llm.Generator
	Digester    Digester
	Repos       []string
	Instruction string
	Timeout     time.Duration
	// MaxChunkChars splits larger prompts; zero disables chunking.
	MaxChunkChars int
}

func (t *Troubleshooting) Handle(ctx context.Context, query string) (messages.Answer, error) {
	digests := make([]repo.Digest, len(t.Repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range t.Repos {
		g.Go(func() error {
			d, err := t.Digester.Digest(gctx, src)
			if err != nil {
				return fmt.Errorf("digest %s: %w", src, err)
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return messages.Answer{}, err
	}

	var b strings.Builder
	b.WriteString("BEGIN: \n Here are the details of the repositories:\n")
	for _, d := range digests {
		b.WriteString(d.String())
		b.WriteString("\n" + chunkSeparator + "\n")
	}
	b.WriteString("\n User Query: " + query + "\n END.")
	prompt := b.String()

	instruction := orDefault(t.Instruction, troubleshootingInstruction)
	if t.MaxChunkChars <= 0 || len(prompt) <= t.MaxChunkChars {
		slog.InfoContext(ctx, "Troubleshooting prompt within limit", "chars", len(prompt))
		text, err := generate(ctx, t.Generator, t.Timeout, prompt, instruction)
		if err != nil {
			return messages.Answer{}, err
		}
		return messages.Answer{Text: text}, nil
	}

	chunks := Chunk(prompt, t.MaxChunkChars)
	slog.InfoContext(ctx, "Troubleshooting prompt too large, using chunking", "chars", len(prompt), "chunks", len(chunks))

	var answers []string
	var lastErr error
	for i, chunk := range chunks {
		slog.DebugContext(ctx, "Processing chunk", "index", i+1, "total", len(chunks))
		text, err := generate(ctx, t.Generator, t.Timeout, chunk, instruction)
		if err != nil {
			if ctx.Err() != nil {
				return messages.Answer{}, ctx.Err()
			}
			slog.WarnContext(ctx, "Chunk failed", "index", i+1, "error", err)
			lastErr = err
			continue
		}
		answers = append(answers, text)
	}
	if len(answers) == 0 {
		return messages.Answer{}, fmt.Errorf("every chunk failed: %w", lastErr)
	}
	return messages.Answer{Text: strings.Join(answers, "\n")}, nil
}

// Chunk splits text at repository separators into pieces of at most max
// bytes. A single section larger than max is cut at rune boundaries.
func Chunk(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	sections := strings.SplitAfter(text, chunkSeparator)
	for _, sec := range sections {
		if cur.Len()+len(sec) <= max {
			cur.WriteString(sec)
			continue
		}
		flush()
		for len(sec) > max {
			cut := runeBoundary(sec, max)
			chunks = append(chunks, sec[:cut])
			sec = sec[cut:]
		}
		cur.WriteString(sec)
	}
	flush()
	return chunks
}

// runeBoundary returns the largest index <= n that starts a rune.
func runeBoundary(s string, n int) int {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	if n == 0 {
		return len(s)
	}
	return n
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Prompt is a plain instruction-plus-query responder declared in config.
type Prompt struct {
	Generator   llm.Generator
	Instruction string
	Timeout     time.Duration
}

var errNoInstruction = errors.New("prompt responder has no instruction")

func (p *Prompt) Handle(ctx context.Context, query string) (messages.Answer, error) {
	if strings.TrimSpace(p.Instruction) == "" {
		return messages.Answer{}, errNoInstruction
	}
	text, err := generate(ctx, p.Generator, p.Timeout, query, p.Instruction)
	if err != nil {
		return messages.Answer{}, err
	}
	return messages.Answer{Text: text}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
