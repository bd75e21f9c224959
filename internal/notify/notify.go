// Package notify delivers detection and error notifications to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"sync"
	"time"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/config"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/models"
	"harmonic-trader/pkg/utils"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendDetection(ctx context.Context, symbol string, tf models.Timeframe, p harmonic.HarmonicPattern) error
	SendError(ctx context.Context, err error, context string) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDetection NotificationType = "detection"
	NotificationError     NotificationType = "error"
	NotificationInfo      NotificationType = "info"
)

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll            NotificationLevel = "all"
	LevelDetectionsOnly NotificationLevel = "detections_only"
	LevelErrorsOnly     NotificationLevel = "errors_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	level    NotificationLevel
	mu       sync.RWMutex
}

var _ Notifier = (*MultiNotifier)(nil)

// NewMultiNotifier creates a new MultiNotifier with the given configuration.
// Channels are only attached when notifications are enabled globally.
func NewMultiNotifier(cfg config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		level:    NotificationLevel(cfg.Level),
	}

	if mn.level == "" {
		mn.level = LevelAll
	}
	if !cfg.Enabled {
		return mn
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.channels = append(mn.channels, NewTelegramNotifier(cfg.Telegram))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// shouldSend checks if a notification should be sent based on the level filter.
func (mn *MultiNotifier) shouldSend(notifType NotificationType) bool {
	switch mn.level {
	case LevelDetectionsOnly:
		return notifType == NotificationDetection
	case LevelErrorsOnly:
		return notifType == NotificationError
	default:
		return true
	}
}

// Send sends a notification to all enabled channels. Every channel is tried;
// failures are joined and wrapped with the channel name.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !mn.shouldSend(n.Type) {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, apperrors.NewNotifyError(ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SendDetection sends a notification for a real pattern detection.
// Synthetic placeholders are never delivered.
func (mn *MultiNotifier) SendDetection(ctx context.Context, symbol string, tf models.Timeframe, p harmonic.HarmonicPattern) error {
	if p.Synthetic {
		return nil
	}

	emoji := "📈"
	if !p.Direction.IsBullish() {
		emoji = "📉"
	}

	title := fmt.Sprintf("%s %s %s on %s %s", emoji, directionLabel(p), p.Type.DisplayName(), symbol, tf)
	message := fmt.Sprintf(
		"Symbol: %s\nTimeframe: %s\nEntry (D): %.4f\nPRZ: %.4f - %.4f\nTP1: %.4f | TP2: %.4f | TP3: %.4f\nStop: %.4f\nReliability: %.1f%%\nCompletion: %.1f%%",
		symbol, tf,
		p.Entry(),
		p.PRZ.Low, p.PRZ.High,
		p.Target.TP1, p.Target.TP2, p.Target.TP3,
		p.Target.SL,
		p.Reliability,
		p.Completion,
	)
	if p.StrategyNote != "" {
		message += "\n\n" + p.StrategyNote
	}

	return mn.Send(ctx, Notification{
		Type:    NotificationDetection,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"timeframe":   string(tf),
			"pattern":     string(p.Type),
			"direction":   p.Direction.String(),
			"entry":       p.Entry(),
			"prz_high":    p.PRZ.High,
			"prz_low":     p.PRZ.Low,
			"tp1":         p.Target.TP1,
			"tp2":         p.Target.TP2,
			"tp3":         p.Target.TP3,
			"sl":          p.Target.SL,
			"reliability": p.Reliability,
		},
	})
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	title := "❌ Error Occurred"
	message := fmt.Sprintf("Context: %s\nError: %v\nTime: %s",
		errContext, err, time.Now().Format("15:04:05"))

	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		},
	})
}

// errServerStatus marks a 5xx answer, the only status worth retrying.
var errServerStatus = errors.New("server error status")

// deliveryRetry bounds redelivery of one notification.
var deliveryRetry = utils.RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	BackoffFactor:   2,
	RetryableErrors: []error{errServerStatus},
}

// postJSON posts payload and checks the status with ok.
func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, header http.Header, ok func(int) bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	return utils.Retry(ctx, deliveryRetry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("posting: %w", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case ok(resp.StatusCode):
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w %d", errServerStatus, resp.StatusCode)
		default:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	})
}

// WebhookNotifier posts notifications as JSON to a URL.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string    { return "webhook" }
func (w *WebhookNotifier) IsEnabled() bool { return w.enabled }

// Send posts n. Any 2xx status counts as delivered.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return apperrors.ErrNotifierDisabled
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.UTC().Format(time.RFC3339),
	}
	header := http.Header{"User-Agent": []string{"HarmonicTrader/1.0"}}
	return postJSON(ctx, w.client, w.url, payload, header, func(code int) bool {
		return code >= 200 && code < 300
	})
}

// TelegramNotifier sends notifications through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	enabled  bool
	client   *http.Client
}

// NewTelegramNotifier creates a new TelegramNotifier. It stays disabled
// without both a bot token and a chat id.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  "https://api.telegram.org",
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string    { return "telegram" }
func (t *TelegramNotifier) IsEnabled() bool { return t.enabled }

// Send delivers n as an HTML formatted message.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return apperrors.ErrNotifierDisabled
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(n.Title), html.EscapeString(n.Message)),
		"parse_mode": "HTML",
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	return postJSON(ctx, t.client, url, payload, nil, func(code int) bool {
		return code == http.StatusOK
	})
}

func directionLabel(p harmonic.HarmonicPattern) string {
	if p.Direction.IsBullish() {
		return "Bullish"
	}
	return "Bearish"
}

// NoOpNotifier is a notifier that does nothing (for testing or disabled notifications).
type NoOpNotifier struct{}

var _ Notifier = NoOpNotifier{}

// Send does nothing.
func (NoOpNotifier) Send(context.Context, Notification) error { return nil }

// SendDetection does nothing.
func (NoOpNotifier) SendDetection(context.Context, string, models.Timeframe, harmonic.HarmonicPattern) error {
	return nil
}

// SendError does nothing.
func (NoOpNotifier) SendError(context.Context, error, string) error { return nil }
