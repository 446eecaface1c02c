package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"offerbot/presenter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Telegram rejects captions longer than this
const maxCaptionRunes = 1024

// Sender is the part of the Telegram client used to post messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatMessenger posts cards and notices to one Telegram chat
type ChatMessenger struct {
	sender  Sender
	chatID  int64
	replyTo int
	logger  logrus.FieldLogger
	wait    func(ctx context.Context, d time.Duration) error
}

// NewChatMessenger creates a messenger for chatID. Notices reply to message
// replyTo when it is non-zero.
func NewChatMessenger(sender Sender, chatID int64, replyTo int, logger logrus.FieldLogger) *ChatMessenger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ChatMessenger{
		sender:  sender,
		chatID:  chatID,
		replyTo: replyTo,
		logger:  logger.WithField("chat_id", chatID),
		wait:    sleepCtx,
	}
}

// SendCardWithImage posts card with image uploaded as product.jpg
func (m *ChatMessenger) SendCardWithImage(ctx context.Context, card presenter.Card, image []byte) error {
	photo := tgbotapi.NewPhoto(m.chatID, tgbotapi.FileBytes{Name: "product.jpg", Bytes: image})
	photo.Caption = Caption(card)
	photo.ParseMode = tgbotapi.ModeHTML
	return m.send(ctx, photo)
}

// SendCardWithImageURL posts card with a remote image
func (m *ChatMessenger) SendCardWithImageURL(ctx context.Context, card presenter.Card, imageURL string) error {
	photo := tgbotapi.NewPhoto(m.chatID, tgbotapi.FileURL(imageURL))
	photo.Caption = Caption(card)
	photo.ParseMode = tgbotapi.ModeHTML
	return m.send(ctx, photo)
}

// Notify posts a plain text notice
func (m *ChatMessenger) Notify(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(m.chatID, text)
	msg.ReplyToMessageID = m.replyTo
	msg.ParseMode = tgbotapi.ModeHTML
	return m.send(ctx, msg)
}

// send posts c, waiting once for Telegram's flood control when asked to
func (m *ChatMessenger) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := m.sender.Send(c)
	if err == nil {
		return nil
	}

	delay := retryAfter(err)
	if delay <= 0 {
		return err
	}

	m.logger.WithField("retry_after", delay).Warn("rate limited by telegram, waiting")
	if werr := m.wait(ctx, delay); werr != nil {
		return werr
	}
	if _, err := m.sender.Send(c); err != nil {
		return fmt.Errorf("failed to send after flood wait: %w", err)
	}
	return nil
}

// Caption renders card as Telegram HTML. Over-long captions are shortened
// field by field, longest first, so the markup stays intact.
func Caption(card presenter.Card) string {
	caption := renderCaption(card)
	fields := []*string{&card.Title, &card.Description, &card.Footer}
	for range fields {
		over := utf8.RuneCountInString(caption) - maxCaptionRunes
		if over <= 0 {
			break
		}
		field := fields[0]
		for _, f := range fields[1:] {
			if escapedLen(*f) > escapedLen(*field) {
				field = f
			}
		}
		*field = shorten(*field, over)
		caption = renderCaption(card)
	}
	return caption
}

func renderCaption(card presenter.Card) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(card.Title))
	b.WriteString("</b>\n")
	b.WriteString(html.EscapeString(card.Description))
	b.WriteString("\n")
	fmt.Fprintf(&b, `<a href="%s">Ver oferta</a>`, html.EscapeString(card.URL))
	b.WriteString("\n<i>")
	b.WriteString(html.EscapeString(card.Footer))
	b.WriteString("</i>")
	return b.String()
}

// shorten cuts s so its escaped form loses at least n runes and ends it with
// an ellipsis. Entities are never split.
func shorten(s string, n int) string {
	budget := escapedLen(s) - n - 1
	var b strings.Builder
	for _, r := range s {
		size := escapedLen(string(r))
		if size > budget {
			break
		}
		budget -= size
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "…"
}

func escapedLen(s string) int {
	return utf8.RuneCountInString(html.EscapeString(s))
}

func retryAfter(err error) time.Duration {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
