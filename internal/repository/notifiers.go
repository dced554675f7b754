package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/pkg/logger"
)

// Publisher is the subset of the Kafka producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaNotifier publishes notifications as JSON keyed by symbol.
type KafkaNotifier struct {
	pub   Publisher
	topic string
}

func NewKafkaNotifier(pub Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{pub: pub, topic: topic}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg models.Notification) error {
	if err := n.pub.Publish(ctx, n.topic, []byte(msg.Symbol), msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

var severityColor = map[models.Severity]int{
	models.SeverityInfo:     0x3498db,
	models.SeverityWarning:  0xf1c40f,
	models.SeverityCritical: 0xe74c3c,
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      map[string]any `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordNotifier posts notifications to a Discord webhook as embeds. No retries.
type DiscordNotifier struct {
	client  *resty.Client
	webhook string
}

func NewDiscordNotifier(webhook string, timeout time.Duration) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "pulsescan")
	return &DiscordNotifier{client: client, webhook: webhook}
}

func (n *DiscordNotifier) Send(ctx context.Context, msg models.Notification) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(discordBody(msg)).
		Post(n.webhook)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("discord webhook: status %d", resp.StatusCode())
	}
	return nil
}

func discordBody(msg models.Notification) discordPayload {
	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]discordField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, discordField{Name: k, Value: formatField(msg.Fields[k]), Inline: true})
	}

	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	color, ok := severityColor[msg.Severity]
	if !ok {
		color = severityColor[models.SeverityInfo]
	}
	return discordPayload{
		Username: "PulseScan",
		Embeds: []discordEmbed{{
			Title:       msg.Title,
			Description: msg.Message,
			Color:       color,
			Fields:      fields,
			Footer:      map[string]any{"text": strings.ToUpper(string(msg.Kind)) + " | " + msg.Symbol},
			Timestamp:   ts.UTC().Format(time.RFC3339),
		}},
	}
}

func formatField(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg models.Notification) error {
	fields := []logger.Field{
		logger.String("kind", string(msg.Kind)),
		logger.String("symbol", msg.Symbol),
		logger.String("title", msg.Title),
		logger.Any("fields", msg.Fields),
	}
	if msg.Severity == models.SeverityInfo {
		n.log.Info(msg.Message, fields...)
	} else {
		n.log.Warn(msg.Message, fields...)
	}
	return nil
}

// NamedNotifier labels a backend for metrics.
type NamedNotifier struct {
	Name     string
	Notifier service.Notifier
}

// MultiNotifier fans a notification out to every backend and joins the errors.
type MultiNotifier struct {
	backends []NamedNotifier
	metrics  domrepo.Metrics
}

func NewMultiNotifier(metrics domrepo.Metrics, backends ...NamedNotifier) *MultiNotifier {
	return &MultiNotifier{backends: backends, metrics: metrics}
}

func (m *MultiNotifier) Send(ctx context.Context, msg models.Notification) error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Notifier.Send(ctx, msg); err != nil {
			m.metrics.RecordError("notify_" + b.Name)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
			continue
		}
		m.metrics.RecordMessageSent(b.Name, msg.Symbol)
	}
	return errors.Join(errs...)
}

var (
	_ service.Notifier = (*KafkaNotifier)(nil)
	_ service.Notifier = (*DiscordNotifier)(nil)
	_ service.Notifier = (*LogNotifier)(nil)
	_ service.Notifier = (*MultiNotifier)(nil)
)
