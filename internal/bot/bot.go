// Package bot is the chat front-end: it greets customers, confirms
// checkouts and marks orders paid when a payment arrives.
package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tg-storefront/internal/config"
	"tg-storefront/internal/invoice"
	"tg-storefront/internal/model"
	"tg-storefront/internal/telegram"

	"github.com/rs/zerolog"
)

const (
	welcomeText       = "Привет 👋\nЯ бот для заказа еды.\nНажми кнопку ниже, чтобы открыть меню:"
	menuButtonText    = "Открыть меню"
	checkoutErrorText = "Не удалось определить заказ"

	// SecretHeader carries the webhook secret configured with setWebhook.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// API is the part of the Bot API the front-end uses.
type API interface {
	SendMessage(ctx context.Context, msg telegram.Message, bestEffort bool) (*telegram.Response, error)
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
	GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]telegram.Update, error)
}

// PaymentConfirmer records a completed payment against an order.
type PaymentConfirmer interface {
	MarkPaid(ctx context.Context, id int64) (*model.Order, error)
}

// Bot dispatches incoming updates.
type Bot struct {
	api       API
	orders    PaymentConfirmer
	webAppURL string
	wait      time.Duration
	retryBase time.Duration
	retryMax  time.Duration
	logger    zerolog.Logger
}

// New creates a bot front-end.
func New(api API, orders PaymentConfirmer, cfg config.TelegramConfig, logger zerolog.Logger) *Bot {
	return &Bot{
		api:       api,
		orders:    orders,
		webAppURL: cfg.WebAppURL,
		wait:      cfg.PollTimeout,
		retryBase: time.Second,
		retryMax:  30 * time.Second,
		logger:    logger.With().Str("component", "bot").Logger(),
	}
}

// HandleUpdate reacts to a single update. Only a failed checkout answer is
// returned as an error; reply failures are logged.
func (b *Bot) HandleUpdate(ctx context.Context, upd telegram.Update) error {
	switch {
	case upd.PreCheckoutQuery != nil:
		return b.handlePreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.Message != nil && upd.Message.SuccessfulPayment != nil:
		b.handlePayment(ctx, upd.Message)
	case upd.Message != nil && isCommand(upd.Message.Text, "start"):
		b.handleStart(ctx, upd.Message)
	default:
		b.logger.Debug().Int64("update_id", upd.UpdateID).Msg("update ignored")
	}
	return nil
}

func (b *Bot) handleStart(ctx context.Context, msg *telegram.IncomingMessage) {
	reply := telegram.Message{ChatID: msg.Chat.ID, Text: welcomeText}
	if b.webAppURL != "" {
		reply.ReplyMarkup = &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{{
				{Text: menuButtonText, WebApp: &telegram.WebAppInfo{URL: b.webAppURL}},
			}},
		}
	}
	b.reply(ctx, reply)
}

func (b *Bot) handlePreCheckout(ctx context.Context, q *telegram.PreCheckoutQuery) error {
	orderID, err := invoice.DecodePayload(q.InvoicePayload)
	if err != nil {
		b.logger.Warn().Err(err).Str("query_id", q.ID).Msg("checkout with unknown payload")
		return b.api.AnswerPreCheckoutQuery(ctx, q.ID, false, checkoutErrorText)
	}

	b.logger.Debug().Int64("order_id", orderID).Int64("amount", q.TotalAmount).Msg("checkout confirmed")
	return b.api.AnswerPreCheckoutQuery(ctx, q.ID, true, "")
}

func (b *Bot) handlePayment(ctx context.Context, msg *telegram.IncomingMessage) {
	payment := msg.SuccessfulPayment

	orderID, err := invoice.DecodePayload(payment.InvoicePayload)
	if err == nil {
		_, err = b.orders.MarkPaid(ctx, orderID)
	}
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("payload", payment.InvoicePayload).
			Int64("chat_id", msg.Chat.ID).
			Msg("failed to confirm payment")
		b.reply(ctx, telegram.Message{
			ChatID: msg.Chat.ID,
			Text:   fmt.Sprintf("⚠️ Ошибка при подтверждении оплаты: %v", err),
		})
		return
	}

	b.logger.Info().
		Int64("order_id", orderID).
		Int64("amount", payment.TotalAmount).
		Str("currency", payment.Currency).
		Msg("payment confirmed")
	b.reply(ctx, telegram.Message{
		ChatID: msg.Chat.ID,
		Text:   fmt.Sprintf("✅ Оплата за заказ №%d прошла успешно!", orderID),
	})
}

func (b *Bot) reply(ctx context.Context, msg telegram.Message) {
	if _, err := b.api.SendMessage(ctx, msg, true); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("reply not sent")
	}
}

// Run long-polls for updates until ctx is cancelled. Updates queued before
// start are skipped. Polling errors are retried with exponential backoff.
func (b *Bot) Run(ctx context.Context) error {
	offset := b.skipPending(ctx)
	b.logger.Info().Int64("offset", offset).Msg("bot polling started")

	backoff := b.retryBase
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.wait)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info().Msg("bot polling stopped")
				return nil
			}
			b.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to poll updates")
			select {
			case <-ctx.Done():
				b.logger.Info().Msg("bot polling stopped")
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > b.retryMax {
				backoff = b.retryMax
			}
			continue
		}
		backoff = b.retryBase

		for _, upd := range updates {
			if err := b.HandleUpdate(ctx, upd); err != nil {
				b.logger.Error().Err(err).Int64("update_id", upd.UpdateID).Msg("failed to handle update")
			}
			offset = upd.UpdateID + 1
		}
	}
}

// skipPending returns the offset just past the newest queued update.
func (b *Bot) skipPending(ctx context.Context) int64 {
	updates, err := b.api.GetUpdates(ctx, -1, 0)
	if err != nil || len(updates) == 0 {
		return 0
	}
	return updates[len(updates)-1].UpdateID + 1
}

// WebhookHandler accepts updates pushed by the Bot API. Requests must carry
// the configured secret in SecretHeader.
func (b *Bot) WebhookHandler(secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			b.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("webhook secret mismatch")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var upd telegram.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&upd); err != nil {
			b.logger.Warn().Err(err).Msg("invalid webhook body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := b.HandleUpdate(r.Context(), upd); err != nil {
			b.logger.Error().Err(err).Int64("update_id", upd.UpdateID).Msg("failed to handle update")
		}
		w.WriteHeader(http.StatusOK)
	})
}

// isCommand reports whether text is /name, optionally addressed to a bot
// (/name@bot) or followed by arguments.
func isCommand(text, name string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd == "/"+name
}
