// Package autoload registers every built-in backend provider.
package autoload

import (
	_ "orbit/pkg/llm/anthropic"
	_ "orbit/pkg/llm/gemini"
	_ "orbit/pkg/llm/ollama"
	_ "orbit/pkg/llm/openailm"
)
