package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(sub *Subscription) []Event {
	var events []Event
	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub(8)
	all := hub.Subscribe(nil)
	mine := hub.Subscribe(ForUser("u1"))
	courses := hub.Subscribe(ForUser("u1", CourseProgressChanged))
	defer all.Close()
	defer mine.Close()
	defer courses.Close()

	hub.Publish(Event{Kind: LessonProgressChanged, ID: "l1", UserID: "u1"})
	hub.Publish(Event{Kind: CourseProgressChanged, ID: "c1", UserID: "u1"})
	hub.Publish(Event{Kind: CourseProgressChanged, ID: "c1", UserID: "u2"})

	assert.Len(t, drain(all), 3)
	assert.Len(t, drain(mine), 2)
	assert.Equal(t, []Event{{Kind: CourseProgressChanged, ID: "c1", UserID: "u1"}}, drain(courses))
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(nil)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		hub.Publish(Event{Kind: LessonProgressChanged, ID: "l1", UserID: "u1"})
	}
	assert.Len(t, drain(sub), 1)
}

func TestSubscription_Close(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe(nil)
	assert.Equal(t, 1, hub.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.NotPanics(t, func() { hub.Publish(Event{Kind: ModuleProgressChanged, ID: "m1"}) })
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	hub := NewHub(2)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := hub.Subscribe(nil)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(Event{Kind: LessonProgressChanged, ID: "l1"})
			}
		}()
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Len())
}
