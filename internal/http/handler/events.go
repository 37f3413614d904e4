package handler

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"notary/internal/fanout"
	"notary/internal/model"
)

const keepAliveInterval = 15 * time.Second

// Events streams live notarization events as server-sent events. The first
// frame is a hello carrying the current topic id. The stream ends when the
// client goes away or done is closed; queued events are flushed first.
//
// @Summary  Live event stream
// @Tags     notary
// @Produce  text/event-stream
// @Success  200 {object} model.Event
// @Router   /events [get]
func Events(feed *fanout.Broadcaster, topicID func() string, done <-chan struct{}) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		events, cancel := feed.Subscribe()
		hello := model.Event{
			Type:      model.EventHello,
			TopicID:   topicID(),
			Timestamp: time.Now().UnixMilli(),
		}

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()

			if err := writeEvent(w, hello); err != nil {
				return
			}

			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()

			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					if err := writeEvent(w, ev); err != nil {
						return
					}
				case <-ticker.C:
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				case <-done:
					drain(w, events)
					return
				}
			}
		}))

		return nil
	}
}

// drain writes events already queued for this listener.
func drain(w *bufio.Writer, events <-chan model.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok || writeEvent(w, ev) != nil {
				return
			}
		default:
			return
		}
	}
}

func writeEvent(w *bufio.Writer, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
