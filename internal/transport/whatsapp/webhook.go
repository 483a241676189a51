package whatsapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"manvibot/internal/transport"
	logx "manvibot/pkg/logx"
)

// WebhookConfig controls the inbound webhook server.
type WebhookConfig struct {
	Addr        string
	VerifyToken string
}

// Webhook receives Cloud API callbacks and pushes text messages to the
// updates channel. Callbacks are acknowledged immediately; processing
// happens on the consumer side.
type Webhook struct {
	cfg WebhookConfig
	log logx.Logger

	updates chan<- transport.Update
	srv     *http.Server
}

func NewWebhook(cfg WebhookConfig, updates chan<- transport.Update, log logx.Logger) *Webhook {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Webhook{cfg: cfg, updates: updates, log: log}
}

func (w *Webhook) handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "manvibot is awake")
	})
	r.GET("/webhook", w.handleVerify)
	r.POST("/webhook", w.handleMessage)
	return r
}

func (w *Webhook) Start(ctx context.Context) error {
	w.srv = &http.Server{
		Addr:         w.cfg.Addr,
		Handler:      w.handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := w.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("webhook server failed", logx.Err(err))
		}
	}()
	w.log.Info("webhook listening", logx.String("addr", w.cfg.Addr))
	return nil
}

func (w *Webhook) Stop(ctx context.Context) error {
	if w.srv == nil {
		return nil
	}
	return w.srv.Shutdown(ctx)
}

// handleVerify answers the Cloud API subscription handshake.
func (w *Webhook) handleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token == w.cfg.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.AbortWithStatus(http.StatusForbidden)
}

func (w *Webhook) handleMessage(c *gin.Context) {
	// Ack first: the Cloud API retries non-200s aggressively.
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	c.Status(http.StatusOK)
	if err != nil {
		w.log.Warn("webhook body read failed", logx.Err(err))
		return
	}

	msg := gjson.GetBytes(body, "entry.0.changes.0.value.messages.0")
	text := msg.Get("text.body").String()
	if strings.TrimSpace(text) == "" {
		return
	}
	from := msg.Get("from").String()
	name := gjson.GetBytes(body, "entry.0.changes.0.value.contacts.0.profile.name").String()

	select {
	case w.updates <- transport.Update{From: from, Name: name, Text: text}:
	default:
		w.log.Warn("updates channel full, dropping message", logx.String("from", from))
	}
}
