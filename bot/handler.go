package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"sync"
	"time"

	"offerbot/draw"
	"offerbot/metrics"
	"offerbot/models"
	"offerbot/presenter"
	"offerbot/sites"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Replies to the offers command
const (
	AckNotice     = "🔍 Realizando scraping, aguarde..."
	FailureNotice = "❌ Erro ao realizar o scraping."
)

const (
	unauthorizedReply = "⛔ Você não tem permissão para usar este bot."
	unknownReply      = "Comando desconhecido. Use /help para ver os comandos."
)

// Runner scrapes the given sites
type Runner interface {
	Run(ctx context.Context, list []sites.Site) (models.ScrapeRun, error)
}

// HandlerConfig names the commands and who may use them
type HandlerConfig struct {
	OffersCommand string
	DrawCommand   string
	AllowedChats  []int64
	Sites         []sites.Site
	Rand          *rand.Rand // draw source; nil uses the global one
}

// Handler dispatches chat commands
type Handler struct {
	sender    Sender
	runner    Runner
	presenter *presenter.Presenter
	cfg       HandlerConfig
	allowed   map[int64]bool
	drawMu    sync.Mutex
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(sender Sender, runner Runner, p *presenter.Presenter, cfg HandlerConfig, m *metrics.Metrics, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	allowed := make(map[int64]bool, len(cfg.AllowedChats))
	for _, id := range cfg.AllowedChats {
		allowed[id] = true
	}
	return &Handler{
		sender:    sender,
		runner:    runner,
		presenter: p,
		cfg:       cfg,
		allowed:   allowed,
		metrics:   m,
		logger:    logger.WithField("component", "handler"),
	}
}

// Handle processes one incoming message. Non-command messages are ignored.
func (h *Handler) Handle(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || !msg.IsCommand() {
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"chat_id": msg.Chat.ID,
		"command": msg.Command(),
	})

	if !h.authorized(msg) {
		log.Warn("unauthorized command")
		h.reply(ctx, msg, unauthorizedReply)
		return
	}

	start := time.Now()
	defer func() {
		h.metrics.ObserveCommand(msg.Command(), time.Since(start))
	}()

	switch msg.Command() {
	case h.cfg.OffersCommand:
		if err := h.HandleOffers(ctx, msg); err != nil {
			log.WithError(err).Error("offers command failed")
		}
	case h.cfg.DrawCommand:
		h.handleDraw(ctx, msg)
	case "start", "help":
		h.reply(ctx, msg, h.helpText())
	default:
		h.reply(ctx, msg, unknownReply)
	}
}

// HandleOffers scrapes every configured site and posts the offers in the chat
func (h *Handler) HandleOffers(ctx context.Context, msg *tgbotapi.Message) error {
	m := NewChatMessenger(h.sender, msg.Chat.ID, msg.MessageID, h.logger)

	if err := m.Notify(ctx, AckNotice); err != nil {
		h.logger.WithError(err).Warn("failed to acknowledge command")
	}

	run, err := h.runner.Run(ctx, h.cfg.Sites)
	if err == nil {
		err = h.presenter.Present(ctx, m, run)
	}
	if err == nil {
		return nil
	}

	if ctx.Err() == nil {
		if nerr := m.Notify(ctx, FailureNotice); nerr != nil {
			h.logger.WithError(nerr).Error("failed to send failure notice")
		}
	}
	return err
}

func (h *Handler) handleDraw(ctx context.Context, msg *tgbotapi.Message) {
	names := draw.ParseNames(msg.CommandArguments())
	h.drawMu.Lock()
	winner, err := draw.Pick(names, h.cfg.Rand)
	h.drawMu.Unlock()
	if errors.Is(err, draw.ErrNoNames) {
		h.reply(ctx, msg, fmt.Sprintf("Informe os nomes para o sorteio. Ex.: /%s Ana Bruno Carla", h.cfg.DrawCommand))
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("draw failed")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":    msg.Chat.ID,
		"candidates": len(names),
	}).Info("draw completed")
	h.reply(ctx, msg, fmt.Sprintf("🎉 Sorteado(a) entre %d nomes: <b>%s</b>", len(names), html.EscapeString(winner)))
}

func (h *Handler) authorized(msg *tgbotapi.Message) bool {
	if len(h.allowed) == 0 {
		return true
	}
	if msg.Chat != nil && h.allowed[msg.Chat.ID] {
		return true
	}
	return msg.From != nil && h.allowed[msg.From.ID]
}

func (h *Handler) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	m := NewChatMessenger(h.sender, msg.Chat.ID, msg.MessageID, h.logger)
	if err := m.Notify(ctx, text); err != nil {
		h.logger.WithError(err).Error("failed to send reply")
	}
}

func (h *Handler) helpText() string {
	return fmt.Sprintf("Comandos:\n"+
		"/%s - busca as ofertas do dia em %d lojas\n"+
		"/%s &lt;nomes&gt; - sorteia um dos nomes informados\n"+
		"/help - mostra esta ajuda",
		h.cfg.OffersCommand, len(h.cfg.Sites), h.cfg.DrawCommand)
}
