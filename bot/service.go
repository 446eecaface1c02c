package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Client is the part of *tgbotapi.BotAPI the service depends on
type Client interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Service long-polls Telegram and hands each command to the Handler
type Service struct {
	client      Client
	handler     *Handler
	pollTimeout int
	logger      logrus.FieldLogger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewService creates a new service; nothing is received until Start
func NewService(client Client, handler *Handler, pollTimeout int, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		client:      client,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger.WithField("component", "bot"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins receiving updates in a goroutine
func (s *Service) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = s.pollTimeout
	updates := s.client.GetUpdatesChan(u)

	s.wg.Add(1)
	go s.run(updates)
	s.logger.Info("bot started")
}

// Stop cancels in-flight commands and waits for them to return
func (s *Service) Stop() {
	s.cancel()
	s.client.StopReceivingUpdates()
	s.wg.Wait()
	s.logger.Info("bot stopped")
}

// Done is closed once Stop has been called
func (s *Service) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Service) run(updates tgbotapi.UpdatesChannel) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			msg := update.Message
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handler.Handle(s.ctx, msg)
			}()
		}
	}
}
