package handlers

import (
	"bufio"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const streamKeepAlive = 25 * time.Second

// streamSnapshots serves a subscription as server-sent events: one
// "snapshot" event per delivery and a final "error" event if the
// subscription fails. The subscription is cancelled when the client goes
// away.
func streamSnapshots[T any](c *fiber.Ctx, sub *eventbus.Subscription[T]) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Cancel()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case snap, ok := <-sub.C:
				if !ok {
					select {
					case err := <-sub.Err:
						writeEvent(w, "error", fiber.Map{"message": err.Error()})
					default:
					}
					return
				}
				if err := writeEvent(w, "snapshot", snap); err != nil {
					return
				}
			case <-keepAlive.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode stream event", "event", event, "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
