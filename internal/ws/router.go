package ws

import (
	"fmt"

	"github.com/alejoacosta74/shrimpy-stream/internal/dispatcher"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

// OutcomeKind classifies what Route did with a frame.
type OutcomeKind int

const (
	// OutcomeDispatched means a handler was scheduled.
	OutcomeDispatched OutcomeKind = iota
	// OutcomeDropped means nobody is subscribed to the topic any more.
	OutcomeDropped
	// OutcomePong means the caller must send Reply before reading the next frame.
	OutcomePong
	// OutcomeFatal means the session must end with Err.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeDropped:
		return "dropped"
	case OutcomePong:
		return "pong"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of routing one inbound frame.
type Outcome struct {
	Kind  OutcomeKind
	Reply shrimpy.Pong
	Err   error
}

// Router classifies inbound frames and hands data frames to their subscription handler.
type Router struct {
	registry     *Registry
	dispatcher   *dispatcher.Dispatcher
	errorHandler ErrorHandler
	observer     Observer
	logger       *logger.Logger
}

// NewRouter builds a router. errorHandler may be nil, in which case server errors are
// fatal for the session.
func NewRouter(registry *Registry, d *dispatcher.Dispatcher, errorHandler ErrorHandler, observer Observer) *Router {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Router{
		registry:     registry,
		dispatcher:   d,
		errorHandler: errorHandler,
		observer:     observer,
		logger:       logger.WithField("component", "ws_router"),
	}
}

// Route decides what to do with a decoded frame. raw is the undecoded frame, used to
// extract error payloads.
func (r *Router) Route(topic string, msg shrimpy.Message, raw []byte) Outcome {
	switch topic {
	case TopicPing:
		return Outcome{Kind: OutcomePong, Reply: shrimpy.NewPong(msg.Data)}
	case TopicError:
		return r.routeError(raw)
	}

	handler, ok := r.registry.Lookup(topic)
	if !ok {
		r.observer.FrameDropped(topic)
		r.logger.WithField("topic", topic).Trace("no handler for topic, dropping frame")
		return Outcome{Kind: OutcomeDropped}
	}

	if err := r.dispatcher.Dispatch(topic, func() { handler(msg) }); err != nil {
		r.observer.FrameDropped(topic)
		r.logger.WithField("topic", topic).Debugf("frame not dispatched: %v", err)
		return Outcome{Kind: OutcomeDropped}
	}
	return Outcome{Kind: OutcomeDispatched}
}

func (r *Router) routeError(raw []byte) Outcome {
	frame, err := shrimpy.DecodeErrorFrame(raw)
	if err != nil {
		return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf("%w: error frame: %v", ErrMalformedFrame, err)}
	}
	serverErr := &ServerError{Code: frame.Code, Message: frame.Message}

	if r.errorHandler == nil {
		return Outcome{Kind: OutcomeFatal, Err: serverErr}
	}

	handler := r.errorHandler
	if err := r.dispatcher.Dispatch(TopicError, func() { handler(serverErr) }); err != nil {
		r.logger.Debugf("error frame not dispatched: %v", err)
		return Outcome{Kind: OutcomeDropped}
	}
	return Outcome{Kind: OutcomeDispatched}
}
