package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram шлёт алерты по резервированию в админ-чат.
// Нулевой указатель безопасен: все методы тогда no-op.
type Telegram struct {
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	adminChat int64
}

func NewTelegram(token string, adminChatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Telegram{api: api, log: log, adminChat: adminChatID}, nil
}

func (t *Telegram) send(text string) {
	if t == nil {
		return
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.adminChat, text)); err != nil {
		t.log.Error("telegram send failed", "err", err)
	}
}

// Shortage отправляет сводку по нехватке материалов после авторезервирования.
func (t *Telegram) Shortage(woNumber string, lines []string) {
	if t == nil || len(lines) == 0 {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Нехватка материалов по заказу %s:\n", woNumber)
	for _, l := range lines {
		b.WriteString("• ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	t.send(b.String())
}
