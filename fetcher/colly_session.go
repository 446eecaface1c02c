package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// ErrNotNavigated is returned when a page is read before any navigation succeeded
var ErrNotNavigated = errors.New("no page loaded")

// CollySession serves server-rendered storefronts without a browser. Each
// navigation replaces the current document.
type CollySession struct {
	userAgent string
	transport http.RoundTripper
	logger    logrus.FieldLogger

	mu     sync.Mutex
	body   []byte
	url    string
	closed bool
}

// CollyOption configures a CollySession
type CollyOption func(*CollySession)

// WithTransport routes every request through rt
func WithTransport(rt http.RoundTripper) CollyOption {
	return func(s *CollySession) {
		s.transport = rt
	}
}

// NewCollySession creates a static session sending userAgent on every request
func NewCollySession(userAgent string, logger logrus.FieldLogger, opts ...CollyOption) *CollySession {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &CollySession{
		userAgent: userAgent,
		logger:    logger.WithField("component", "colly_session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CollySession) newCollector(ctx context.Context, timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	if s.transport != nil {
		c.WithTransport(s.transport)
	}
	return c
}

// Navigate fetches url and keeps the response body as the current document
func (s *CollySession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	s.body, s.url = nil, ""
	s.mu.Unlock()

	c := s.newCollector(ctx, timeout)

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		s.logger.WithFields(logrus.Fields{
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
		}).WithError(err).Debug("request failed")
	})

	if err := c.Visit(url); err != nil {
		return fmt.Errorf("failed to visit URL: %w", err)
	}
	c.Wait()

	if body == nil {
		return fmt.Errorf("no response from %s", url)
	}

	s.mu.Lock()
	s.body, s.url = body, url
	s.mu.Unlock()
	return nil
}

// WaitSelector checks the current document for selector. A static document
// never changes, so the check does not wait.
func (s *CollySession) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	html, err := s.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("no element matches %q on %s", selector, s.url)
	}
	return nil
}

// HTML returns the current document
func (s *CollySession) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body == nil {
		return "", ErrNotNavigated
	}
	return string(s.body), nil
}

// Close drops the current document; further navigations fail
func (s *CollySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.body = nil
	return nil
}
