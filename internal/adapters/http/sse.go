package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

var keepAliveInterval = 25 * time.Second

// StreamGauge tracks open event streams. prometheus.Gauge satisfies it.
type StreamGauge interface {
	Inc()
	Dec()
}

type nopGauge struct{}

func (nopGauge) Inc() {}
func (nopGauge) Dec() {}

func gaugeOrNop(g StreamGauge) StreamGauge {
	if g == nil {
		return nopGauge{}
	}
	return g
}

// stream turns a subscription into a text/event-stream response. Only the
// newest undelivered snapshot is kept when the client reads slower than
// snapshots arrive. The subscription ends when the client disconnects.
func stream[T any](c echo.Context, gauge StreamGauge, log *logger.Logger, event string,
	subscribe func(ctx context.Context, fn func(T)) (ports.CancelFunc, error), render func(T) any) error {

	ctx, cancelCtx := context.WithCancel(c.Request().Context())
	defer cancelCtx()

	updates := make(chan T, 1)
	cancel, err := subscribe(ctx, func(v T) {
		for {
			select {
			case updates <- v:
				return
			default:
			}
			// replace the stale pending snapshot
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	defer cancel()

	gauge.Inc()
	defer gauge.Dec()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-updates:
			data, err := json.Marshal(render(v))
			if err != nil {
				log.Errorw("Failed to encode event", "event", event, "error", err)
				return nil
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return nil
			}
			res.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
