// Package webhook forwards balance change notifications to HTTP endpoints.
package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher POSTs every BalanceChanged notification to each configured URL.
type Dispatcher struct {
	client  *fasthttp.Client
	urls    []string
	timeout time.Duration
	logger  port.Logger
}

// NewDispatcher creates a Dispatcher. Empty URLs are ignored.
func NewDispatcher(urls []string, timeout time.Duration, l port.Logger) *Dispatcher {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	return &Dispatcher{
		client:  &fasthttp.Client{},
		urls:    cleaned,
		timeout: timeout,
		logger:  l.With("component", "webhook"),
	}
}

// Enabled reports whether there is at least one target.
func (d *Dispatcher) Enabled() bool {
	return len(d.urls) > 0
}

// Run delivers events until the channel closes or ctx is done.
// Delivery failures are logged and counted, never retried.
func (d *Dispatcher) Run(ctx context.Context, events <-chan entity.BalanceChanged) {
	d.logger.Info("Webhook dispatcher started", "targets", len(d.urls))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				d.logger.Info("Webhook dispatcher stopped")
				return
			}
			if err := d.Deliver(ctx, ev); err != nil {
				d.logger.Warn("Webhook delivery failed", "accountId", ev.AccountID, "eventId", ev.ID, "error", err)
			}
		}
	}
}

// Deliver sends one event to every target concurrently and returns the first error.
func (d *Dispatcher) Deliver(ctx context.Context, ev entity.BalanceChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, url := range d.urls {
		g.Go(func() error {
			err := d.post(ctx, url, body)
			if err != nil {
				metrics.WebhookDeliveries.WithLabelValues("error").Inc()
				return err
			}
			metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBodyRaw(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := d.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("failed to post to %s: %w", url, err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("webhook %s responded with status %d", url, status)
	}
	return nil
}
