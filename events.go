package jerseyfolio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// keepAliveInterval keeps idle event streams open through proxies.
const keepAliveInterval = 25 * time.Second

// handleEvents streams broadcast messages as server-sent events until the
// client goes away or the hub is closed.
func (a *App) handleEvents(c echo.Context) error {
	sub := a.Hub.Subscribe(0)
	defer sub.Close()

	res := c.Response()
	h := res.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	fmt.Fprint(res, "retry: 3000\n\n")
	res.Flush()

	log := a.Logger.Named("sse")
	log.Debug("event stream opened", zap.String("remote_ip", c.RealIP()), zap.Int("subscribers", a.Hub.Subscribers()))
	defer log.Debug("event stream closed", zap.String("remote_ip", c.RealIP()))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case m, ok := <-sub.C:
			if !ok {
				return nil
			}
			data, err := json.Marshal(m)
			if err != nil {
				log.Warn("encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(res, "id: %s\nevent: %s\ndata: %s\n\n", m.ID, m.Type, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
