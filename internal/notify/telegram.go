package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// telegramMessageLimit is Telegram's maximum message length.
const telegramMessageLimit = 4096

// Telegram delivers notifications through a Telegram bot. channelID is
// the numeric chat id as a string.
type Telegram struct {
	bot *telego.Bot
}

var _ Channel = (*Telegram)(nil)

// NewTelegram creates a Telegram channel from a bot token.
func NewTelegram(token string) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// Send delivers the payload, splitting it into message-sized chunks.
func (t *Telegram) Send(ctx context.Context, channelID string, payload string) Delivery {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return Delivery{Error: fmt.Sprintf("invalid chat id %q: %v", channelID, err)}
	}

	for _, chunk := range chunkMessage(payload, telegramMessageLimit) {
		if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return Delivery{Error: fmt.Sprintf("send message: %v", err)}
		}
	}
	return Delivery{Delivered: true}
}

// chunkMessage splits text into chunks within maxLen, preferring to
// break at a newline in the back half of the chunk.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}
