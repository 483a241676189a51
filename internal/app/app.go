// Package app wires configuration, storage, intent resolution, dispatch
// and the transports into one runnable assistant.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"manvibot/internal/config"
	"manvibot/internal/dispatch"
	"manvibot/internal/intent"
	"manvibot/internal/intent/providers"
	"manvibot/internal/notifier"
	"manvibot/internal/quota"
	"manvibot/internal/router"
	"manvibot/internal/storage"
	"manvibot/internal/transport"
	"manvibot/internal/transport/telegram"
	"manvibot/internal/transport/whatsapp"
	logx "manvibot/pkg/logx"
)

// Secrets are the credentials that never live in the config file. cmd/bot
// reads them from the environment.
type Secrets struct {
	GeminiAPIKey string
	OpenAIAPIKey string

	TelegramToken string

	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string

	// OwnerDestination identifies the boss: a WhatsApp phone number or a
	// "tg:<chatID>" address.
	OwnerDestination string
}

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger
	loc  *time.Location

	store    *storage.Store
	quota    *quota.Service
	resolver *intent.Resolver
	notif    *notifier.Service
	disp     *dispatch.Service
	router   *router.Service

	webhook *whatsapp.Webhook
	tg      *telegram.Adapter

	updates chan transport.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string, sec Secrets) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: invalid %q: %w", cfg.Timezone, err)
	}

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	q := quota.New(store, cfg.Intent.DailyCeiling, loc, log.With(logx.String("comp", "quota")))

	reqTimeout, err := config.ParseDurationOrDefault("intent.request_timeout", cfg.Intent.RequestTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	primary := providers.NewGemini(providers.GeminiConfig{
		Model:   cfg.Intent.PrimaryModel,
		APIKey:  sec.GeminiAPIKey,
		Timeout: reqTimeout,
	}, log.With(logx.String("comp", "gemini")))
	fallback := providers.NewOpenAI(providers.OpenAIConfig{
		Model:   cfg.Intent.FallbackModel,
		APIKey:  sec.OpenAIAPIKey,
		Timeout: reqTimeout,
	}, log.With(logx.String("comp", "openai")))
	resolver := intent.NewResolver(primary, fallback, q, reqTimeout, loc, log.With(logx.String("comp", "intent")))

	updates := make(chan transport.Update, 256)

	// Transports: either side is optional, but at least one must be up or
	// nobody can talk to the bot.
	var (
		waDriver notifier.Driver
		tgDriver notifier.Driver
		webhook  *whatsapp.Webhook
		tgAd     *telegram.Adapter
	)
	if cfg.WhatsApp.Enabled {
		if sec.WhatsAppAccessToken == "" || sec.WhatsAppPhoneNumberID == "" {
			return nil, fmt.Errorf("whatsapp enabled but WHATSAPP_TOKEN / WHATSAPP_PHONE_NUMBER_ID not set")
		}
		client := whatsapp.NewClient(whatsapp.ClientConfig{
			PhoneNumberID: sec.WhatsAppPhoneNumberID,
			AccessToken:   sec.WhatsAppAccessToken,
			APIVersion:    cfg.WhatsApp.APIVersion,
		}, log.With(logx.String("comp", "whatsapp")))
		waDriver = client
		webhook = whatsapp.NewWebhook(whatsapp.WebhookConfig{
			Addr:        cfg.WhatsApp.Addr,
			VerifyToken: sec.WhatsAppVerifyToken,
		}, updates, log.With(logx.String("comp", "webhook")))
	}
	if cfg.Telegram.Enabled {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		ad, err := telegram.New(telegram.Config{
			Token:       sec.TelegramToken,
			PollTimeout: pollTimeout,
		}, updates, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		tgAd = ad
		tgDriver = ad
	}
	if webhook == nil && tgAd == nil {
		return nil, fmt.Errorf("no transport enabled; enable whatsapp or telegram in the config")
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, waDriver, tgDriver, log.With(logx.String("comp", "notifier")))

	notifyTimeout, err := config.ParseDurationOrDefault("dispatch.notify_timeout", cfg.Dispatch.NotifyTimeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	disp := dispatch.New(dispatch.Config{
		Enabled:       cfg.Dispatch.Enabled,
		EventTime:     cfg.Dispatch.EventTime,
		NotifyTimeout: notifyTimeout,
	}, store, notif, loc, log.With(logx.String("comp", "dispatch")))

	rtr := router.New(router.Config{
		OwnerDestination: sec.OwnerDestination,
		OwnerName:        cfg.Router.OwnerName,
		AssistantName:    cfg.Router.AssistantName,
	}, store, resolver, notif, loc, log.With(logx.String("comp", "router")))

	return &App{
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log,
		loc:      loc,
		store:    store,
		quota:    q,
		resolver: resolver,
		notif:    notif,
		disp:     disp,
		router:   rtr,
		webhook:  webhook,
		tg:       tgAd,
		updates:  updates,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.disp.Start(runCtx); err != nil {
		return err
	}
	if a.webhook != nil {
		if err := a.webhook.Start(runCtx); err != nil {
			return err
		}
	}
	if a.tg != nil {
		a.tg.Start(runCtx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	// Hot reload: logging, quota ceiling and notifier limits apply live.
	// Storage, timezone and transport changes need a restart.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))

	a.quota.Apply(cfg.Intent.DailyCeiling)

	if ncfg, err := mapNotifierConfig(cfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if !strings.EqualFold(cfg.Timezone, a.loc.String()) {
		a.log.Warn("timezone changed; restart required for changes to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) {
	a.log.Info("stopping")
	if a.cancel != nil {
		a.cancel()
	}

	if a.tg != nil {
		a.tg.Stop(ctx)
	}
	if a.webhook != nil {
		if err := a.webhook.Stop(ctx); err != nil {
			a.log.Warn("webhook stop", logx.Err(err))
		}
	}
	a.disp.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown deadline reached before workers finished")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
		},
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	retryBase, err := config.ParseDurationOrDefault("notifier.retry_base", cfg.Notifier.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		RatePerSec: cfg.Notifier.RatePerSec,
		RetryMax:   cfg.Notifier.RetryMax,
		RetryBase:  retryBase,
	}, nil
}
