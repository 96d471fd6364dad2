package middleware

import (
	"errors"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestSequencerKeepsPerUserOrder(t *testing.T) {
	seq := NewSequencer(nil)

	var mu sync.Mutex
	var applied []int
	h := seq.Middleware(func(c tele.Context) error {
		n := c.Get("n").(int)
		if n == 0 {
			// a slow first update must not be overtaken
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		applied = append(applied, n)
		mu.Unlock()
		return nil
	})

	const total = 50
	for i := 0; i < total; i++ {
		c := newStub(7)
		c.Set("n", i)
		if err := h(c); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	seq.Wait()

	if len(applied) != total {
		t.Fatalf("applied %d updates, want %d", len(applied), total)
	}
	for i, n := range applied {
		if n != i {
			t.Fatalf("applied order = %v", applied)
		}
	}
}

func TestSequencerRunsUsersInParallel(t *testing.T) {
	seq := NewSequencer(nil)
	release := make(chan struct{})
	done := make(chan struct{})

	h := seq.Middleware(func(c tele.Context) error {
		if c.Sender().ID == 1 {
			<-release
			return nil
		}
		close(release)
		close(done)
		return nil
	})

	_ = h(newStub(1))
	_ = h(newStub(2))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second user was blocked behind the first")
	}
	seq.Wait()
}

func TestSequencerReportsErrors(t *testing.T) {
	want := errors.New("handler failed")
	var got error
	seq := NewSequencer(func(err error, _ tele.Context) { got = err })

	h := seq.Middleware(func(tele.Context) error { return want })
	if err := h(newStub(3)); err != nil {
		t.Fatalf("middleware returned %v", err)
	}
	seq.Wait()
	if !errors.Is(got, want) {
		t.Fatalf("onError got %v", got)
	}
}

func TestSequencerSurvivesPanic(t *testing.T) {
	seq := NewSequencer(nil)
	var ran bool
	h := seq.Middleware(func(c tele.Context) error {
		if c.Get("panic") != nil {
			panic("boom")
		}
		ran = true
		return nil
	})

	first := newStub(4)
	first.Set("panic", true)
	_ = h(first)
	_ = h(newStub(4))
	seq.Wait()
	if !ran {
		t.Fatal("update after a panic was not handled")
	}
}

func TestSequencerRunsAnonymousInline(t *testing.T) {
	seq := NewSequencer(nil)
	want := errors.New("inline")
	c := newStub(0)
	c.sender = nil
	if err := seq.Middleware(func(tele.Context) error { return want })(c); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}
