// Package telegram is the optional Telegram channel: long-poll inbound,
// telebot outbound. Destinations are "tg:<chatID>".
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"manvibot/internal/transport"
	logx "manvibot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool

	updates chan<- transport.Update
}

func New(cfg Config, updates chan<- transport.Update, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}

	a := &Adapter{cfg: cfg, log: log, bot: bot, updates: updates}
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		up := transport.Update{
			From: Destination(m.Chat.ID),
			Name: strings.TrimSpace(m.Sender.FirstName),
			Text: m.Text,
		}
		select {
		case a.updates <- up:
		default:
			a.log.Warn("updates channel full, dropping message", logx.Int64("chat_id", m.Chat.ID))
		}
		return nil
	})
}

func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.runMu.Unlock()

	go a.bot.Start()
	a.log.Info("telegram polling started")
}

func (a *Adapter) Stop(ctx context.Context) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	a.bot.Stop()
	a.log.Info("telegram polling stopped")
}

// SendText implements notifier.Driver for "tg:<chatID>" destinations.
func (a *Adapter) SendText(ctx context.Context, destination, text string) error {
	id, err := ParseDestination(destination)
	if err != nil {
		return err
	}
	_, err = a.bot.Send(&tele.Chat{ID: id}, text)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Destination renders a chat ID as a router destination string.
func Destination(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// ParseDestination extracts the chat ID from a "tg:<chatID>" destination.
func ParseDestination(destination string) (int64, error) {
	raw, ok := strings.CutPrefix(destination, "tg:")
	if !ok {
		return 0, fmt.Errorf("not a telegram destination: %q", destination)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad telegram chat id %q: %w", raw, err)
	}
	return id, nil
}
