// Package autoload registers every built-in channel factory.
package autoload

import (
	_ "orbit/pkg/channels/mcp"
	_ "orbit/pkg/channels/natsbus"
	_ "orbit/pkg/channels/telegram"
	_ "orbit/pkg/channels/web"
)
