// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eventbus

import "testing"

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{Topic: TopicLog, Payload: "hello"})

	select {
	case ev := <-ch:
		if ev.Topic != TopicLog || ev.Payload != "hello" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected an event to be delivered")
	}
}

func TestPublishFanOutToMultipleSubscribers(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(Event{Topic: TopicConnection, Payload: true})

	if ev := <-ch1; ev.Payload != true {
		t.Fatalf("subscriber 1 did not get event: %+v", ev)
	}
	if ev := <-ch2; ev.Payload != true {
		t.Fatalf("subscriber 2 did not get event: %+v", ev)
	}
}

func TestPublishDropsOnFullSubscriberWithoutBlocking(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberCap+10; i++ {
		b.Publish(Event{Topic: TopicLog, Payload: i})
	}

	if len(ch) != subscriberCap {
		t.Fatalf("expected channel to be saturated at cap %d, got %d", subscriberCap, len(ch))
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	cancel()

	b.Publish(Event{Topic: TopicLog, Payload: "after cancel"})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestUnaffectedSubscriberUnblockedByFullOne(t *testing.T) {
	b := New()
	full, cancelFull := b.Subscribe()
	defer cancelFull()
	ok, cancelOK := b.Subscribe()
	defer cancelOK()

	for i := 0; i < subscriberCap+5; i++ {
		b.Publish(Event{Topic: TopicLog, Payload: i})
		<-ok // the healthy subscriber drains every event
	}

	if len(full) != subscriberCap {
		t.Fatalf("expected the stalled subscriber to be capped, got %d", len(full))
	}
}
