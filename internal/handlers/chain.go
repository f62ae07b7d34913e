package handlers

import (
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

// Chain runs every handler in order for each frame. A failing handler is logged and
// does not stop the ones after it.
func Chain(handlers ...MessageHandler) ws.Handler {
	log := logger.WithField("component", "handler_chain")
	return func(msg shrimpy.Message) {
		for _, h := range handlers {
			if err := h.Handle(msg); err != nil {
				log.WithError(err).WithFields(logger.Fields{
					"exchange": msg.Exchange,
					"pair":     msg.Pair,
					"channel":  msg.Channel,
				}).Warnf("%T failed", h)
			}
		}
	}
}
