package monitor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// CLIMonitor implements the Monitor interface, printing every question and
// answer flowing through the gateway to a terminal.
type CLIMonitor struct {
	mu     sync.Mutex
	writer io.Writer // The output destination, typically os.Stdout.
	gray   *color.Color
	cyan   *color.Color
	green  *color.Color
}

// NewCLIMonitor creates a new CLI monitor
func NewCLIMonitor() *CLIMonitor {
	return NewCLIMonitorTo(os.Stdout)
}

// NewCLIMonitorTo creates a CLI monitor writing to w.
func NewCLIMonitorTo(w io.Writer) *CLIMonitor {
	return &CLIMonitor{
		writer: w,
		gray:   color.New(color.FgHiBlack),
		cyan:   color.New(color.FgCyan),
		green:  color.New(color.FgGreen),
	}
}

// Start starts the CLI monitor
func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "CLI Monitor Active - questions and answers will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

// Stop stops the CLI monitor
func (m *CLIMonitor) Stop() error {
	return nil
}

// OnMessage receives and displays a monitoring message
func (m *CLIMonitor) OnMessage(msg MonitorMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timestamp := m.gray.Sprintf("[%s]", msg.Timestamp.Format("2006-01-02 15:04:05"))

	if msg.MessageType == TypeAssistant {
		who := "router"
		if msg.Responder != "" {
			who = msg.Responder
		}
		fmt.Fprintf(m.writer, "%s %s %s %s\n", timestamp, m.green.Sprintf("[%s]", who), msg.Content, m.gray.Sprintf("(%s)", msg.Latency.Round(time.Millisecond)))
		return
	}
	fmt.Fprintf(m.writer, "%s %s %s\n", timestamp, m.cyan.Sprintf("[%s/%s]", msg.ChannelID, msg.Username), msg.Content)
}
