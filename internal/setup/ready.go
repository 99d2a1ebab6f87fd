// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"net/http"
	"time"

	"github.com/jeranaias/odoo-agent/internal/events"
)

const readyPollInterval = 500 * time.Millisecond

// waitReady polls the server until it answers or the timeout passes. Any
// HTTP response counts. A timeout is only a warning.
func (c *Configurator) waitReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	c.sink.Emit(events.Info(Step, "Waiting for Odoo server to accept connections", "url", c.readyURL, "timeout", c.readyTimeout))

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if c.probe(ctx) {
			c.sink.Emit(events.Info(Step, "Odoo server is responding", "url", c.readyURL))
			return true
		}
		select {
		case <-ctx.Done():
			c.sink.Emit(events.Warn(Step, "Odoo server did not respond before timeout; it may still be starting", "timeout", c.readyTimeout))
			return false
		case <-ticker.C:
		}
	}
}

func (c *Configurator) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.readyURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
