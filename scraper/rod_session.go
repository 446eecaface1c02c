package scraper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

// RodOptions configures the headless browser
type RodOptions struct {
	Headless    bool
	Bin         string // empty: look for a system Chrome, then let rod download one
	Stealth     bool
	NoSandbox   bool
	UserDataDir string // parent of the per-session profiles; empty: system temp dir
	UserAgent   string
}

// Chrome/Chromium locations tried before falling back to rod's download
var chromePaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// closeTimeout bounds the graceful browser shutdown before the process is killed
const closeTimeout = 10 * time.Second

// RodSession drives one incognito page of a launched Chromium. Its profile
// directory is private to the session and removed on Close.
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   logrus.FieldLogger

	closeOnce sync.Once
	closeErr  error
}

// NewRodOpener returns an Opener launching a fresh browser per run
func NewRodOpener(opts RodOptions, logger logrus.FieldLogger) Opener {
	return func(ctx context.Context) (Session, error) {
		return NewRodSession(ctx, opts, logger)
	}
}

// NewRodSession launches Chromium and opens a single page in an incognito context
func NewRodSession(ctx context.Context, opts RodOptions, logger logrus.FieldLogger) (*RodSession, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "rod_session")

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-breakpad").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("disable-features", "TranslateUI")

	if opts.UserDataDir != "" {
		dir, err := profileDir(opts.UserDataDir)
		if err != nil {
			return nil, err
		}
		l = l.UserDataDir(dir)
	}

	if bin := findChrome(opts.Bin); bin != "" {
		log.WithField("bin", bin).Debug("using system browser")
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		_ = os.RemoveAll(l.Get(flags.UserDataDir))
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s := &RodSession{
		launcher: l,
		logger:   log,
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = browser

	if err := s.openPage(opts); err != nil {
		s.Close()
		return nil, err
	}

	log.WithField("stealth", opts.Stealth).Debug("browser session opened")
	return s, nil
}

func (s *RodSession) openPage(opts RodOptions) error {
	incognito, err := s.browser.Incognito()
	if err != nil {
		return fmt.Errorf("failed to create incognito context: %w", err)
	}

	if opts.Stealth {
		s.page, err = stealth.Page(incognito)
	} else {
		s.page, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	if opts.UserAgent != "" {
		if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	return nil
}

// Navigate loads url and waits for DOMContentLoaded
func (s *RodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(navCtx)
	wait := p.WaitEvent(&proto.PageDomContentEventFired{})
	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()

	return navCtx.Err()
}

// WaitSelector waits until an element matches selector
func (s *RodSession) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.page.Context(waitCtx).Element(selector)
	return err
}

// HTML returns the current document
func (s *RodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close shuts the browser down and removes its profile. It does not depend on
// the context the session was opened with, so it also releases the browser
// after that context is cancelled. Safe to call more than once.
func (s *RodSession) Close() error {
	s.closeOnce.Do(func() {
		closed := false
		if s.browser != nil {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(s.browser.GetContext()), closeTimeout)
			s.closeErr = s.browser.Context(ctx).Close()
			cancel()
			closed = s.closeErr == nil
		}
		if !closed {
			if s.closeErr != nil {
				s.logger.WithError(s.closeErr).Warn("browser did not close, killing it")
			}
			s.launcher.Kill()
		}
		// waits for the process to exit
		s.launcher.Cleanup()
		s.logger.Debug("browser session closed")
	})
	return s.closeErr
}

// profileDir creates a fresh profile directory under parent. Chrome locks its
// profile, so concurrent sessions can't share one.
func profileDir(parent string) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create user data dir %s: %w", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "session-")
	if err != nil {
		return "", fmt.Errorf("failed to create profile dir in %s: %w", parent, err)
	}
	return dir, nil
}

func findChrome(configured string) string {
	if configured != "" {
		return configured
	}
	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if path, ok := launcher.LookPath(); ok {
		return path
	}
	return ""
}
