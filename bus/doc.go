// Package bus provides addressed, in-process message delivery between agents.
//
// # Overview
//
// Messages are addressed to one or more agent IDs. Delivery is synchronous
// on the sender's goroutine, which gives a fixed recipient a hard ordering
// guarantee: handlers observe messages in the order the Send calls
// happened. A bounded FIFO history supports participant and correlation
// lookups after the fact.
//
// # Usage
//
// Subscribe and send:
//
//	b := bus.New(bus.DefaultConfig())
//	sub, _ := b.Subscribe("reviewer", func(m *bus.Message) {
//	    // handle m
//	})
//	defer sub.Unsubscribe()
//
//	id, _ := b.Send(bus.Message{
//	    From:    "planner",
//	    To:      []string{"reviewer"},
//	    Type:    bus.TypeRequest,
//	    Payload: []byte(`{"diff": "..."}`),
//	})
//
// Look up a conversation later:
//
//	chain := b.Correlated(corrID)
//	recent := b.History("reviewer", 50)
//
// # Failure isolation
//
// A handler that panics is recovered and logged with the message and
// recipient IDs. The panic never reaches the sender and never prevents
// delivery to the remaining recipients.
package bus
