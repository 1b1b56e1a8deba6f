package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pauta/internal/config"
	"pauta/internal/domain"
	"pauta/internal/engine"
)

const (
	webhookInterval = 2 * time.Second
	webhookTimeout  = 5 * time.Second
	webhookBatch    = 100
)

// subscriber is one enabled webhook and the id of the last event it has
// seen. cursor is -1 until the first poll.
type subscriber struct {
	url     string
	secret  string
	client  *http.Client
	matches func(eventType string) bool
	cursor  int64
}

type webhookDispatcher struct {
	engine engine.Engine
	subs   []*subscriber
	log    *zap.Logger
}

// StartWebhooks polls the event log until ctx is done and posts
// matching events to each configured webhook.
func StartWebhooks(ctx context.Context, e engine.Engine, logger *zap.Logger) {
	d := newWebhookDispatcher(e, logger)
	if d == nil {
		return
	}
	go d.run(ctx)
}

func newWebhookDispatcher(e engine.Engine, logger *zap.Logger) *webhookDispatcher {
	if e.Config == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &webhookDispatcher{engine: e, log: logger.Named("webhooks")}
	for _, hook := range e.Config.Webhooks {
		if s := newSubscriber(hook); s != nil {
			d.subs = append(d.subs, s)
		}
	}
	if len(d.subs) == 0 {
		return nil
	}
	return d
}

func newSubscriber(hook config.WebhookConfig) *subscriber {
	if hook.Enabled != nil && !*hook.Enabled {
		return nil
	}
	url := strings.TrimSpace(hook.URL)
	if url == "" {
		return nil
	}
	timeout := webhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	return &subscriber{
		url:     url,
		secret:  strings.TrimSpace(hook.Secret),
		client:  &http.Client{Timeout: timeout},
		matches: eventMatcher(hook.Events),
		cursor:  -1,
	}
}

// eventMatcher accepts every event when patterns is empty. Patterns are
// exact types or path globs such as "agenda.*".
func eventMatcher(patterns []string) func(string) bool {
	var clean []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return func(string) bool { return true }
	}
	return func(t string) bool {
		for _, p := range clean {
			if ok, _ := path.Match(p, t); ok {
				return true
			}
		}
		return false
	}
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(webhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchAll runs one poll. Subscribers are only touched from the
// polling goroutine.
func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for _, s := range d.subs {
		if s.cursor < 0 {
			// Start at the newest event so a restart does not replay history.
			latest, err := d.engine.Repo.LatestEventID(ctx)
			if err != nil {
				d.log.Warn("init cursor failed", zap.Error(err))
				continue
			}
			s.cursor = latest
			continue
		}
		d.deliver(ctx, s)
	}
}

func (d *webhookDispatcher) deliver(ctx context.Context, s *subscriber) {
	events, err := d.engine.Repo.EventsAfter(ctx, s.cursor, webhookBatch)
	if err != nil {
		d.log.Warn("fetch events failed", zap.Error(err))
		return
	}
	for _, evt := range events {
		if s.matches(evt.Type) {
			if err := s.post(ctx, evt); err != nil {
				// Retried from the same event on the next tick.
				d.log.Warn("delivery failed",
					zap.String("url", s.url),
					zap.Int64("event_id", evt.ID),
					zap.Error(err))
				return
			}
			d.log.Debug("delivered", zap.String("url", s.url), zap.String("type", evt.Type))
		}
		s.cursor = evt.ID
	}
}

type webhookBody struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	TS         string         `json:"ts"`
	Payload    map[string]any `json:"payload"`
}

// sign returns the hex HMAC-SHA256 of body keyed by secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *subscriber) post(ctx context.Context, evt domain.Event) error {
	data, err := json.Marshal(webhookBody{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    decodeJSONMap(evt.Payload),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pauta-Event", evt.Type)
	req.Header.Set("X-Pauta-Delivery", strconv.FormatInt(evt.ID, 10))
	if s.secret != "" {
		req.Header.Set("X-Pauta-Signature", "sha256="+sign(s.secret, data))
	}
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
