// Package discord forwards security events to a Discord channel webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qsec/internal/models"
	"qsec/internal/utils"
)

// Embed colors.
const (
	ColorCritical = 0xE74C3C
	ColorSuccess  = 0x2ECC71
)

const footerText = "Q-SEC.AI"

// Embed is a minimal Discord embed payload.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// WebhookPayload is the JSON body for Discord webhooks.
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Notifier posts feed events asynchronously. A Notifier with an empty URL
// drops everything.
type Notifier struct {
	url    string
	client *http.Client
	log    *utils.Logger
	queue  chan WebhookPayload
}

// NewNotifier returns a notifier for webhookURL with a small send buffer.
func NewNotifier(webhookURL string, log *utils.Logger) *Notifier {
	return &Notifier{
		url:    webhookURL,
		client: &http.Client{Timeout: 8 * time.Second},
		log:    log,
		queue:  make(chan WebhookPayload, 32),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Run delivers queued payloads until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-n.queue:
			status, err := n.Post(ctx, payload)
			if err != nil {
				n.log.Writef("Discord webhook error: %v", err)
			} else if status >= 300 {
				n.log.Writef("Discord webhook returned HTTP %d", status)
			}
		}
	}
}

// NotifyEntry queues an embed for entries worth paging on: CRITICAL entries
// and actions taken by the remediation agent. Everything else is ignored.
func (n *Notifier) NotifyEntry(entry models.LogEntry) {
	if !n.Enabled() {
		return
	}
	var embed Embed
	switch {
	case entry.Source == models.SourceAIAgent:
		embed = NewEmbed("Auto-Remediation", entry.Message, ColorSuccess)
	case entry.Level == models.LevelCritical:
		embed = NewEmbed("Critical: "+entry.Source, entry.Message, ColorCritical)
	default:
		return
	}
	embed.Timestamp = entry.Time().UTC().Format(time.RFC3339)
	select {
	case n.queue <- WebhookPayload{Embeds: []Embed{embed}}:
	default:
		n.log.Write("Discord webhook queue full, dropping event")
	}
}

// Post sends payload synchronously and returns the HTTP status code.
func (n *Notifier) Post(ctx context.Context, payload WebhookPayload) (int, error) {
	if n.url == "" {
		return 0, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// NewEmbed creates an embed stamped with the current time.
func NewEmbed(title, description string, color int) Embed {
	return Embed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      &EmbedFooter{Text: footerText},
	}
}
