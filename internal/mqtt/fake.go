package mqtt

import (
	"github.com/sweeney/charge-limiter/internal/logic"
)

// FakeMessage is one message as it would have gone out on the wire.
type FakeMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakePublisher keeps everything handed to it in memory. It is not safe for
// concurrent use; the daemon publishes from a single goroutine.
type FakePublisher struct {
	// Log holds every accepted message in publish order, both topics mixed.
	Log []FakeMessage

	// Events and Payloads are the charger-topic messages.
	Events   []logic.Event
	Payloads [][]byte

	// SystemEvents and SystemPayloads are the lifecycle-topic messages.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError make the matching call fail
	// without recording anything.
	PublishError       error
	PublishSystemError error

	Connected bool
	Closed    bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	f.Log = append(f.Log, FakeMessage{Topic: Topic, Payload: payload})
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	f.Log = append(f.Log, FakeMessage{Topic: TopicSystem, Payload: payload, Retained: event.Retained})
	return nil
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
