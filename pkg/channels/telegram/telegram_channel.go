package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orbit/pkg/api"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig encapsulates the credentials required to authenticate with
// the Telegram Bot API.
type TelegramConfig struct {
	Token string `json:"token"` // The secret BOT API string provided by @BotFather
}

// TelegramChannel is the production implementation of gateway.Channel for
// the Telegram platform. Text messages become questions; long answers are
// split into several bubbles.
type TelegramChannel struct {
	config       TelegramConfig     // Auth credentials
	bot          *tgbotapi.BotAPI   // Underlying Telegram SDK client
	messageLimit int                // Maximum character count per single message bubble
	stopCtx      context.Context    // Context used to forcibly abort the long-polling HTTP request
	stopCancel   context.CancelFunc // Function to trigger the abort
}

func NewTelegramChannel(cfg TelegramConfig, msgLimit int) (api.Channel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Tie the dialer to stopCtx so an active long-poll is aborted on Stop,
	// which prevents the 409 Conflict when a new bot starts.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	botHttpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
				mergedCtx, mergedCancel := context.WithCancel(dialCtx)
				go func() {
					select {
					case <-ctx.Done():
						mergedCancel()
					case <-mergedCtx.Done():
					}
				}()
				return dialer.DialContext(mergedCtx, network, addr)
			},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, botHttpClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	if msgLimit <= 0 {
		msgLimit = 4000
	}
	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		messageLimit: msgLimit,
		stopCtx:      ctx,
		stopCancel:   cancel,
	}, nil
}

// ID returns the unique platform identifier "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start initiates the long-polling update loop in a background goroutine.
func (t *TelegramChannel) Start(ctx api.ChannelContext) error {
	go t.poll(ctx)
	return nil
}

func (t *TelegramChannel) poll(ctx api.ChannelContext) {
	offset := 0
	for {
		select {
		case <-t.stopCtx.Done():
			return // Gracefully exit on shutdown
		default:
		}

		// GetUpdates instead of GetUpdatesChan so we control the offset
		reqConfig := tgbotapi.NewUpdate(offset)
		reqConfig.Timeout = 60

		updates, err := t.bot.GetUpdates(reqConfig)
		if err != nil {
			select {
			case <-t.stopCtx.Done():
				return // Ignore error if we are shutting down
			case <-time.After(3 * time.Second):
				slog.Debug("Failed to get telegram updates", "error", err)
				continue
			}
		}

		for _, update := range updates {
			if update.UpdateID < offset {
				continue
			}
			offset = update.UpdateID + 1

			if msg := toUnified(update); msg != nil {
				ctx.OnMessage(t.ID(), msg)
			}
		}
	}
}

// toUnified maps a text update to a question; anything else yields nil.
func toUnified(update tgbotapi.Update) *api.UnifiedMessage {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return nil
	}

	content := m.Text
	if content == "" {
		content = m.Caption
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	return &api.UnifiedMessage{
		Session: api.SessionContext{
			ChannelID: "telegram",
			UserID:    strconv.FormatInt(m.From.ID, 10),
			ChatID:    strconv.FormatInt(m.Chat.ID, 10),
			Username:  m.From.UserName,
		},
		Content: content,
		Raw:     update,
	}
}

// SendSignal implements the gateway.SignalingChannel interface
func (t *TelegramChannel) SendSignal(session api.SessionContext, signal string) error {
	if signal != api.SignalThinking {
		return nil
	}
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return err
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, err = t.bot.Request(action)
	return err
}

func (t *TelegramChannel) Stop() error {
	t.stopCancel() // Cancel our custom long-polling loop immediately

	// Clear the connection pool; active reads are aborted through stopCtx.
	if httpClient, ok := t.bot.Client.(*http.Client); ok && httpClient != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}

	return nil
}

func (t *TelegramChannel) Send(session api.SessionContext, message string) error {
	// Telegram Chat ID must be int64
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id for telegram: %s", session.ChatID)
	}

	for i, chunk := range splitMessage(message, t.messageLimit) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send chunk %d failed: %w", i, err)
		}
	}
	return nil
}

// splitMessage cuts message into pieces of at most limit runes.
func splitMessage(message string, limit int) []string {
	runes := []rune(message)
	if len(runes) <= limit {
		return []string{message}
	}

	var out []string
	for i := 0; i < len(runes); i += limit {
		end := min(i+limit, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}
