// Package ui prints connection and subscription changes for an interactive terminal.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alejoacosta74/shrimpy-stream/internal/events"
)

// StatusPrinter writes one line per lifecycle event it receives from the bus.
type StatusPrinter struct {
	eventBus events.Bus
	out      io.Writer
	mutex    sync.Mutex
	wg       sync.WaitGroup

	states        <-chan interface{}
	subscriptions <-chan interface{}
}

// NewStatusPrinter creates a printer writing to out.
func NewStatusPrinter(eventBus events.Bus, out io.Writer) *StatusPrinter {
	return &StatusPrinter{
		eventBus: eventBus,
		out:      out,
	}
}

// Start subscribes to the lifecycle topics. Events published before Start are missed.
func (p *StatusPrinter) Start() {
	p.states = p.eventBus.Subscribe(events.TopicConnectionState)
	p.subscriptions = p.eventBus.Subscribe(events.TopicSubscription)

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for event := range p.states {
			if change, ok := event.(events.StateChange); ok {
				p.printState(change)
			}
		}
	}()
	go func() {
		defer p.wg.Done()
		for event := range p.subscriptions {
			if change, ok := event.(events.SubscriptionChange); ok {
				p.printSubscription(change)
			}
		}
	}()
}

// Stop unsubscribes and waits for queued events to be printed.
func (p *StatusPrinter) Stop() {
	if p.states == nil {
		return
	}
	p.eventBus.Unsubscribe(events.TopicConnectionState, p.states)
	p.eventBus.Unsubscribe(events.TopicSubscription, p.subscriptions)
	p.wg.Wait()
}

func (p *StatusPrinter) printState(change events.StateChange) {
	line := fmt.Sprintf("%s  connection %s -> %s", change.At.Format(time.TimeOnly), change.From, change.To)
	if change.Session != "" {
		line += fmt.Sprintf(" [%s]", change.Session)
	}
	if change.Err != nil {
		line += fmt.Sprintf(": %v", change.Err)
	}
	p.println(line)
}

func (p *StatusPrinter) printSubscription(change events.SubscriptionChange) {
	action := "unsubscribed"
	if change.Subscribed {
		action = "subscribed"
	}
	p.println(fmt.Sprintf("%s  %s %s", time.Now().Format(time.TimeOnly), action, change.Topic))
}

func (p *StatusPrinter) println(line string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	fmt.Fprintln(p.out, line)
}
