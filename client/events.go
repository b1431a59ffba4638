package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/broadcast"
)

// DefaultRetry is the reconnect delay for the event stream.
const DefaultRetry = 2 * time.Second

// Events follows the backend's change stream and calls fn for every
// message, reconnecting after retry until ctx is done. A zero retry uses
// DefaultRetry.
func (c *Client) Events(ctx context.Context, retry time.Duration, fn func(broadcast.Message)) error {
	if retry <= 0 {
		retry = DefaultRetry
	}
	for {
		err := c.streamEvents(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug("event stream ended, reconnecting", zap.Error(err), zap.Duration("retry", retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// streamEvents reads one connection of the stream until it ends.
func (c *Client) streamEvents(ctx context.Context, fn func(broadcast.Message)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/events", nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-store")

	// the stream is long-lived, so the client timeout must not apply
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Method: req.Method, URL: req.URL.Path, Code: resp.StatusCode}
	}
	return readEvents(resp.Body, func(ev sseEvent) {
		var m broadcast.Message
		if err := json.Unmarshal([]byte(ev.data), &m); err != nil {
			c.log.Warn("undecodable event", zap.String("event", ev.name), zap.Error(err))
			return
		}
		if m.Type == "" {
			m.Type = broadcast.Type(ev.name)
		}
		fn(m)
	})
}

type sseEvent struct {
	name string
	data string
}

// readEvents parses a text/event-stream body, calling fn for each event
// that carries data. Comment lines are keep-alives and are skipped.
func readEvents(r io.Reader, fn func(sseEvent)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var ev sseEvent
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				ev.data = strings.Join(data, "\n")
				fn(ev)
			}
			ev, data = sseEvent{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return io.EOF
}
