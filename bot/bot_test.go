package bot

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"offerbot/draw"
	"offerbot/models"
	"offerbot/presenter"
	"offerbot/sites"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeSender records every Chattable and can fail the first calls
type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	errs []error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *fakeSender) messages() []tgbotapi.Chattable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tgbotapi.Chattable, len(s.sent))
	copy(out, s.sent)
	return out
}

// texts flattens sent messages into comparable strings
func (s *fakeSender) texts() []string {
	var out []string
	for _, c := range s.messages() {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, "text:"+v.Text)
		case tgbotapi.PhotoConfig:
			kind := "photo-url"
			if _, ok := v.File.(tgbotapi.FileBytes); ok {
				kind = "photo-bytes"
			}
			out = append(out, kind+":"+strings.SplitN(v.Caption, "\n", 2)[0])
		}
	}
	return out
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		MessageID: 77,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: 500},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

var card = presenter.Card{Title: "SSD 1TB", Description: "R$ 399,99", URL: "https://www.kabum.com.br/produto/1", Footer: "kabum"}

func TestSendCardWithImage(t *testing.T) {
	sender := &fakeSender{}
	m := NewChatMessenger(sender, 10, 5, nil)

	if err := m.SendCardWithImage(context.Background(), card, []byte{1, 2, 3}); err != nil {
		t.Fatalf("SendCardWithImage: %v", err)
	}

	photo, ok := sender.messages()[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("sent %T, want PhotoConfig", sender.messages()[0])
	}
	file, ok := photo.File.(tgbotapi.FileBytes)
	if !ok || file.Name != "product.jpg" || len(file.Bytes) != 3 {
		t.Errorf("photo file = %#v", photo.File)
	}
	if photo.ChatID != 10 || photo.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("chat %d parse mode %q", photo.ChatID, photo.ParseMode)
	}
	if photo.ReplyToMessageID != 0 {
		t.Error("product cards must not reply to the command")
	}
	if !strings.Contains(photo.Caption, "<b>SSD 1TB</b>") || !strings.Contains(photo.Caption, "<i>kabum</i>") {
		t.Errorf("caption = %q", photo.Caption)
	}
}

func TestSendCardWithImageURL(t *testing.T) {
	sender := &fakeSender{}
	m := NewChatMessenger(sender, 10, 5, nil)

	if err := m.SendCardWithImageURL(context.Background(), card, presenter.DefaultFallbackImageURL); err != nil {
		t.Fatalf("SendCardWithImageURL: %v", err)
	}
	photo := sender.messages()[0].(tgbotapi.PhotoConfig)
	if photo.File != tgbotapi.FileURL(presenter.DefaultFallbackImageURL) {
		t.Errorf("photo file = %#v", photo.File)
	}
}

func TestNotifyRepliesToCommand(t *testing.T) {
	sender := &fakeSender{}
	m := NewChatMessenger(sender, 10, 5, nil)

	if err := m.Notify(context.Background(), presenter.CompletedNotice); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	msg := sender.messages()[0].(tgbotapi.MessageConfig)
	if msg.Text != presenter.CompletedNotice || msg.ReplyToMessageID != 5 {
		t.Errorf("notice = %q replying to %d", msg.Text, msg.ReplyToMessageID)
	}
}

func TestSendWaitsOnFloodControl(t *testing.T) {
	sender := &fakeSender{errs: []error{
		&tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 3", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}},
	}}
	m := NewChatMessenger(sender, 10, 0, nil)
	var waited time.Duration
	m.wait = func(ctx context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	if err := m.Notify(context.Background(), "oi"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if waited != 3*time.Second {
		t.Errorf("waited %s, want 3s", waited)
	}
	if len(sender.messages()) != 1 {
		t.Errorf("delivered %d messages, want 1", len(sender.messages()))
	}
}

func TestSendDoesNotRetryOtherErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: wrong file identifier"}}}
	m := NewChatMessenger(sender, 10, 0, nil)
	m.wait = func(ctx context.Context, d time.Duration) error {
		t.Error("wait called for a non flood error")
		return nil
	}

	if err := m.SendCardWithImageURL(context.Background(), card, "https://x/y.jpg"); err == nil {
		t.Fatal("expected error")
	}
	if len(sender.messages()) != 0 {
		t.Error("message delivered despite error")
	}
}

func TestCaption(t *testing.T) {
	got := Caption(presenter.Card{Title: "Cabo <HDMI> & DP", Description: "R$ 19,90", URL: "https://x.com/?a=1&b=2", Footer: "pichau"})
	want := "<b>Cabo &lt;HDMI&gt; &amp; DP</b>\nR$ 19,90\n<a href=\"https://x.com/?a=1&amp;b=2\">Ver oferta</a>\n<i>pichau</i>"
	if got != want {
		t.Errorf("Caption() =\n%s\nwant\n%s", got, want)
	}

	long := Caption(presenter.Card{Title: strings.Repeat("á", 2000), Description: "R$ 1,00", URL: "https://x.com", Footer: "kabum"})
	if n := len([]rune(long)); n > maxCaptionRunes {
		t.Errorf("caption has %d runes, want <= %d", n, maxCaptionRunes)
	}
	if !strings.HasSuffix(long, "<i>kabum</i>") {
		t.Errorf("truncated caption lost its footer: %q", long[len(long)-40:])
	}
}

func TestCaptionLongDescriptionKeepsMarkup(t *testing.T) {
	got := Caption(presenter.Card{
		Title:       "Gabinete",
		Description: strings.Repeat("P&B ", 600),
		URL:         "https://www.pichau.com.br/gabinete?a=1&b=2",
		Footer:      "pichau",
	})

	if n := len([]rune(got)); n > maxCaptionRunes {
		t.Fatalf("caption has %d runes, want <= %d", n, maxCaptionRunes)
	}
	if !strings.HasPrefix(got, "<b>Gabinete</b>\nP&amp;B ") {
		t.Errorf("caption lost its title: %q", got[:40])
	}
	if !strings.HasSuffix(got, "…\n<a href=\"https://www.pichau.com.br/gabinete?a=1&amp;b=2\">Ver oferta</a>\n<i>pichau</i>") {
		t.Errorf("caption markup broken at the end: %q", got[len(got)-120:])
	}
	// every & must still start a complete entity
	if strings.Count(got, "&") != strings.Count(got, "&amp;") {
		t.Errorf("caption contains a cut entity")
	}
}

type fakeRunner struct {
	run   models.ScrapeRun
	err   error
	calls int
	got   []sites.Site
}

func (r *fakeRunner) Run(ctx context.Context, list []sites.Site) (models.ScrapeRun, error) {
	r.calls++
	r.got = list
	return r.run, r.err
}

type staticImages map[string][]byte

func (s staticImages) Fetch(ctx context.Context, url string) ([]byte, error) {
	if b, ok := s[url]; ok {
		return b, nil
	}
	return nil, &models.NotAnImageError{URL: url, ContentType: "text/html"}
}

func newHandler(sender Sender, runner Runner, allowed ...int64) *Handler {
	logger, _ := test.NewNullLogger()
	p := presenter.New(staticImages{"https://img/1.jpg": {0xff, 0xd8}}, "", nil, logger)
	return NewHandler(sender, runner, p, HandlerConfig{
		OffersCommand: "ofertas",
		DrawCommand:   "sorteio",
		AllowedChats:  allowed,
		Sites:         sites.Registry(),
	}, nil, logger)
}

func TestHandleOffers(t *testing.T) {
	sender := &fakeSender{}
	runner := &fakeRunner{run: models.ScrapeRun{
		{Site: "kabum", Offers: []models.Offer{
			{Image: "https://img/1.jpg", Name: "SSD", Price: "R$ 1", URL: "https://k/1"},
			{Image: "https://img/2.jpg", Name: "Mouse", Price: "R$ 2", URL: "https://k/2"},
		}},
	}}
	h := newHandler(sender, runner)

	h.Handle(context.Background(), command(10, "/ofertas"))

	want := []string{
		"text:" + AckNotice,
		"photo-bytes:<b>SSD</b>",
		"photo-url:<b>Mouse</b>",
		"text:" + presenter.CompletedNotice,
	}
	got := sender.texts()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sent\n%q\nwant\n%q", got, want)
	}
	if runner.calls != 1 || len(runner.got) != 3 {
		t.Errorf("runner called %d times with %d sites", runner.calls, len(runner.got))
	}
}

func TestHandleOffersNothingFound(t *testing.T) {
	sender := &fakeSender{}
	h := newHandler(sender, &fakeRunner{run: models.ScrapeRun{}})

	h.Handle(context.Background(), command(10, "/ofertas"))

	want := []string{"text:" + AckNotice, "text:" + presenter.NoOffersNotice}
	if got := sender.texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sent %q, want %q", got, want)
	}
}

func TestHandleOffersFatal(t *testing.T) {
	sender := &fakeSender{}
	runner := &fakeRunner{err: &models.FatalRunError{Stage: "open browser session", Err: errors.New("chrome not found")}}
	h := newHandler(sender, runner)

	err := h.HandleOffers(context.Background(), command(10, "/ofertas"))
	var fatal *models.FatalRunError
	if !errors.As(err, &fatal) {
		t.Fatalf("HandleOffers error = %v, want FatalRunError", err)
	}

	want := []string{"text:" + AckNotice, "text:" + FailureNotice}
	if got := sender.texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sent %q, want %q", got, want)
	}
}

func TestHandleDraw(t *testing.T) {
	sender := &fakeSender{}
	h := newHandler(sender, &fakeRunner{})

	h.Handle(context.Background(), command(10, "/sorteio Ana Bruno Carla"))
	got := sender.texts()
	if len(got) != 1 || !strings.Contains(got[0], "entre 3 nomes") {
		t.Fatalf("draw reply = %q", got)
	}
	var named bool
	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		if strings.Contains(got[0], "<b>"+name+"</b>") {
			named = true
		}
	}
	if !named {
		t.Errorf("draw reply names nobody: %q", got[0])
	}

	h.Handle(context.Background(), command(10, "/sorteio"))
	if got := sender.texts(); !strings.Contains(got[1], "Informe os nomes") {
		t.Errorf("empty draw reply = %q", got[1])
	}
}

func TestHandleDrawUsesConfiguredSource(t *testing.T) {
	names := []string{"Ana", "Bruno", "Carla", "Davi", "Eva"}
	want, err := draw.Pick(names, rand.New(rand.NewPCG(7, 11)))
	if err != nil {
		t.Fatal(err)
	}

	sender := &fakeSender{}
	logger, _ := test.NewNullLogger()
	h := NewHandler(sender, &fakeRunner{}, nil, HandlerConfig{
		DrawCommand: "sorteio",
		Rand:        rand.New(rand.NewPCG(7, 11)),
	}, nil, logger)

	h.Handle(context.Background(), command(10, "/sorteio "+strings.Join(names, " ")))

	got := sender.texts()
	if len(got) != 1 || !strings.Contains(got[0], "<b>"+want+"</b>") {
		t.Errorf("draw reply = %q, want winner %s", got, want)
	}
}

func TestHandleAuthorization(t *testing.T) {
	sender := &fakeSender{}
	runner := &fakeRunner{}
	h := newHandler(sender, runner, -100123)

	h.Handle(context.Background(), command(10, "/ofertas"))
	if runner.calls != 0 {
		t.Error("unauthorized chat triggered a scrape")
	}
	if got := sender.texts(); len(got) != 1 || got[0] != "text:"+unauthorizedReply {
		t.Errorf("sent %q", got)
	}

	h.Handle(context.Background(), command(-100123, "/help"))
	if got := sender.texts(); len(got) != 2 || !strings.Contains(got[1], "/ofertas") {
		t.Errorf("help reply = %q", got)
	}
}

func TestHandleIgnoresPlainText(t *testing.T) {
	sender := &fakeSender{}
	h := newHandler(sender, &fakeRunner{})

	h.Handle(context.Background(), &tgbotapi.Message{Text: "bom dia", Chat: &tgbotapi.Chat{ID: 1}})
	h.Handle(context.Background(), nil)
	if len(sender.messages()) != 0 {
		t.Errorf("sent %d messages for non-commands", len(sender.messages()))
	}

	h.Handle(context.Background(), command(1, "/xyz"))
	if got := sender.texts(); len(got) != 1 || got[0] != "text:"+unknownReply {
		t.Errorf("unknown command reply = %q", got)
	}
}

type fakeClient struct {
	*fakeSender
	updates chan tgbotapi.Update
	stopped chan struct{}
	timeout int
}

func (c *fakeClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	c.timeout = config.Timeout
	return c.updates
}

func (c *fakeClient) StopReceivingUpdates() {
	close(c.stopped)
}

func TestServiceLifecycle(t *testing.T) {
	client := &fakeClient{
		fakeSender: &fakeSender{},
		updates:    make(chan tgbotapi.Update, 2),
		stopped:    make(chan struct{}),
	}
	logger, _ := test.NewNullLogger()
	s := NewService(client, newHandler(client, &fakeRunner{}), 45, logger)

	s.Start()
	client.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "oi", Chat: &tgbotapi.Chat{ID: 1}}}
	client.updates <- tgbotapi.Update{Message: command(1, "/help")}

	deadline := time.Now().Add(2 * time.Second)
	for len(client.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()

	if got := client.texts(); len(got) != 1 || !strings.Contains(got[0], "Comandos") {
		t.Errorf("sent %q, want one help reply", got)
	}
	if client.timeout != 45 {
		t.Errorf("poll timeout = %d, want 45", client.timeout)
	}
	select {
	case <-client.stopped:
	default:
		t.Error("Stop did not stop receiving updates")
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after Stop")
	}
}
