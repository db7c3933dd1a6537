/*
Package event provides a type-safe, pub/sub event system for the cortex server.

The event system enables decoupled communication between different components of the
server by allowing publishers to emit events and subscribers to react to them without
direct dependencies.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while maintaining
direct-call semantics to preserve type information. It provides both synchronous and
asynchronous event publishing patterns.

# Event Types

The system supports the event categories the assistant daemon actually
emits, driving the CLI's streaming output and any attached UI:

Streaming Events:
  - stream.token: Incremental assistant output produced
  - stream.clear: Partial streamed text should be discarded (e.g. a tool call preempts it)
  - stream.complete: Final reply text ready for a turn

Tool Events:
  - tool.call: A tool invocation was dispatched
  - tool.result: A tool invocation completed

Orchestrator Events:
  - plan.created: The planner model produced a step plan
  - step.executing: A plan step's router pass has begun
  - step.completed: A plan step finished (success or failure)

Budget and Confirmation Events:
  - context.budget: The conversation store's context budget was recomputed
  - confirmation.request: A tool call needs user confirmation before it runs

# Basic Usage

Publishing events:

	// Asynchronous publishing (non-blocking)
	event.Publish(event.Event{
		Type: event.StreamToken,
		Data: event.StreamTokenData{SessionID: sessionID, Delta: "Reading"},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type: event.StreamComplete,
		Data: event.StreamCompleteData{SessionID: sessionID, Content: reply},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.ToolCallEvent, func(e event.Event) {
		log.Info("tool call dispatched", "type", e.Type)
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug("Event received", "type", e.Type)
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the publisher's
goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

Example of a safe subscriber:

	event.SubscribeAll(func(e event.Event) {
	    select {
	    case eventChan <- e:
	        // Event sent successfully
	    default:
	        // Channel full, drop event to avoid blocking
	        log.Warn("Event dropped due to full channel", "type", e.Type)
	    }
	})

# Custom Event Bus

For testing or isolation, you can create custom bus instances:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.ToolCallEvent, handler)
	bus.PublishSync(event.Event{Type: event.ToolCallEvent, Data: data})

# Testing

The package provides utilities for testing:

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple goroutines.
Both publishing and subscribing operations are protected by internal synchronization.

# Performance Considerations

- Asynchronous publishing (Publish) creates a goroutine per subscriber per event
- Synchronous publishing (PublishSync) calls all subscribers in the current goroutine
- Use PublishSync for critical events where ordering matters
- Use Publish for fire-and-forget notifications
- Consider subscriber performance impact on PublishSync calls

# Integration with Watermill

The package uses watermill's gochannel internally, providing access to the underlying
pubsub infrastructure for advanced use cases:

	pubsub := event.PubSub()
	// Use watermill features like middleware, routing, etc.

This allows future migration to distributed message brokers if needed while maintaining
the current API.
*/
package event