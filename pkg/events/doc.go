/*
Package events provides an in-memory event broker for remediation events.

The reconciler publishes one event per notable step of an invocation
(started, completed or failed, each unresolved target, each address conflict,
each stop outcome). Subscribers such as the audit history writer receive
them on buffered channels.

Publish never blocks: when the 100-event queue is full the event is dropped
and counted, and a subscriber whose 50-event buffer is full misses the event.
An invocation is never slowed down by a slow consumer.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for e := range sub {
			fmt.Println(e.Type, e.Message)
		}
	}()

	broker.Publish(events.New(events.EventInstanceStopped, "Stopped instance", "instance_id", id))
*/
package events
