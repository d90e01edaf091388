package notify

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

// LogSink records every reminder in the structured log. It is always
// configured, so a deployment without any push channel still leaves a
// delivery trace.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, user store.User, r Reminder) error {
	s.log.Info("reminder",
		logx.String("user_id", user.ID),
		logx.String("title", r.Title),
		logx.String("body", r.Body),
	)
	return nil
}

// TelegramSink pushes reminders to the user's linked Telegram chat. Users
// without a linked chat are skipped.
type TelegramSink struct {
	bot *tele.Bot
}

// NewTelegramBot builds a send-only bot handle.
func NewTelegramBot(token string) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{Token: token})
}

func NewTelegramSink(bot *tele.Bot) *TelegramSink {
	return &TelegramSink{bot: bot}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(_ context.Context, user store.User, r Reminder) error {
	if user.TelegramChatID == 0 {
		return nil
	}
	_, err := s.bot.Send(&tele.Chat{ID: user.TelegramChatID}, r.Title+"\n"+r.Body)
	return err
}
