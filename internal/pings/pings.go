// internal/pings/pings.go
package pings

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// Announcer notifies external update aggregators that the site has new
// content. While the site is private the target list resolves to empty and
// nothing is announced.
type Announcer struct {
	view     *settings.View
	targets  []string
	siteURL  string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger
}

func NewAnnouncer(view *settings.View, targets []string, siteURL string, interval time.Duration, log *slog.Logger) *Announcer {
	return &Announcer{
		view:     view,
		targets:  targets,
		siteURL:  siteURL,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With("component", "pings"),
	}
}

// Run announces on a fixed interval until the context is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	if len(a.targets) == 0 {
		return
	}
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Announce(ctx)
		}
	}
}

// Announce pings every configured target once. Failures are logged and
// skipped; a ping is best-effort.
func (a *Announcer) Announce(ctx context.Context) {
	targets := access.DecideOutboundPingTargets(a.view.Load(ctx), a.targets)
	for _, target := range targets {
		if err := a.ping(ctx, target); err != nil {
			a.log.Warn("ping failed", "target", target, "error", err)
		}
	}
}

func (a *Announcer) ping(ctx context.Context, target string) error {
	body, _ := json.Marshal(map[string]string{"url": a.siteURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
