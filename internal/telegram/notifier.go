package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/executor"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/strategy"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	bot     Sender
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg config.TelegramConfig, log *logger.Logger) *Notifier {
	log = log.Component("telegram")
	if !cfg.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)
	return NewWithSender(bot, cfg.ChatID, log)
}

func NewWithSender(bot Sender, chatID int64, log *logger.Logger) *Notifier {
	return &Notifier{
		bot:     bot,
		chatID:  chatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifyTrade(o executor.Outcome) {
	n.send(FormatTrade(o))
}

func (n *Notifier) NotifyError(context string, err error) {
	n.send(fmt.Sprintf("⚠️ *Error* [%s]\n%v", context, err))
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func FormatTrade(o executor.Outcome) string {
	var sb strings.Builder

	switch {
	case !o.Success:
		sb.WriteString("⚠️ *REJECTED* ")
	case o.Action == strategy.ActionBuy:
		sb.WriteString("🟢 *BUY* ")
	default:
		sb.WriteString("🔴 *SELL* ")
	}
	sb.WriteString(o.Symbol)
	if o.DryRun {
		sb.WriteString(" (dry run)")
	}
	sb.WriteString("\n")

	if o.Contract != "" {
		fmt.Fprintf(&sb, "Contract: %s\n", o.Contract)
	}
	fmt.Fprintf(&sb, "Qty: %g\n", o.Quantity)
	switch {
	case o.PricePending:
		sb.WriteString("Price: pending fill\n")
	case o.Price > 0:
		fmt.Fprintf(&sb, "Price: %.2f\n", o.Price)
	}
	if o.Strategy != "" {
		fmt.Fprintf(&sb, "Strategy: %s\n", o.Strategy)
	}
	if o.OrderID != "" {
		fmt.Fprintf(&sb, "Order: %s\n", o.OrderID)
	}
	if o.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", o.Error)
	} else if o.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", o.Reason)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
