package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedController returns queued snapshots in order, repeating the last.
type scriptedController struct {
	NopController
	mu    sync.Mutex
	snaps []Snapshot
	errs  []error
	idx   int
}

func (s *scriptedController) CurrentSnapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.idx
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	s.idx++
	if i < len(s.errs) && s.errs[i] != nil {
		return Snapshot{}, s.errs[i]
	}
	return s.snaps[i], nil
}

type chanPublisher struct{ ch chan Snapshot }

func (p *chanPublisher) Publish(snap Snapshot) { p.ch <- snap }

func collect(t *testing.T, ch chan Snapshot, n int, within time.Duration) []Snapshot {
	t.Helper()
	var got []Snapshot
	deadline := time.After(within)
	for len(got) < n {
		select {
		case s := <-ch:
			got = append(got, s)
		case <-deadline:
			t.Fatalf("timed out after %d of %d snapshots", len(got), n)
		}
	}
	return got
}

func TestWatcher_PublishesOnChange(t *testing.T) {
	c := &scriptedController{snaps: []Snapshot{
		{State: "paused", Title: "One"},
		{State: "playing", Title: "One"},
		{State: "playing", Title: "Two"},
	}}
	pub := &chanPublisher{ch: make(chan Snapshot, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWatcher(c, pub, 10*time.Millisecond).Run(ctx)

	got := collect(t, pub.ch, 3, 2*time.Second)
	if got[0].State != "paused" || got[1].State != "playing" || got[2].Title != "Two" {
		t.Errorf("published sequence wrong: %+v", got)
	}
}

func TestWatcher_SkipsUnchangedAndPositionOnly(t *testing.T) {
	c := &scriptedController{snaps: []Snapshot{
		{State: "playing", Title: "One", Position: 10},
		{State: "playing", Title: "One", Position: 15}, // position only; no push
		{State: "playing", Title: "One", Position: 20},
		{State: "playing", Title: "Two", Position: 0},
	}}
	pub := &chanPublisher{ch: make(chan Snapshot, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWatcher(c, pub, 10*time.Millisecond).Run(ctx)

	got := collect(t, pub.ch, 2, 2*time.Second)
	if got[0].Title != "One" || got[1].Title != "Two" {
		t.Errorf("published sequence wrong: %+v", got)
	}

	select {
	case extra := <-pub.ch:
		t.Errorf("unexpected extra publish: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_KeepsPollingThroughErrors(t *testing.T) {
	c := &scriptedController{
		snaps: []Snapshot{{}, {}, {State: "playing", Title: "One"}},
		errs:  []error{errors.New("app not running"), errors.New("app not running"), nil},
	}
	pub := &chanPublisher{ch: make(chan Snapshot, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWatcher(c, pub, 10*time.Millisecond).Run(ctx)

	got := collect(t, pub.ch, 1, 2*time.Second)
	if got[0].Title != "One" {
		t.Errorf("published snapshot: %+v", got[0])
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	c := &scriptedController{snaps: []Snapshot{{State: "paused"}}}
	pub := &chanPublisher{ch: make(chan Snapshot, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWatcher(c, pub, 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	collect(t, pub.ch, 1, 2*time.Second)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestChanged(t *testing.T) {
	base := Snapshot{State: "playing", Title: "T", Artist: "A", Album: "L", Volume: 50, SystemVolume: 40}

	same := base
	same.Position = 99
	if changed(base, same) {
		t.Error("position-only difference reported as changed")
	}

	for name, mutate := range map[string]func(*Snapshot){
		"state":         func(s *Snapshot) { s.State = "paused" },
		"title":         func(s *Snapshot) { s.Title = "X" },
		"artist":        func(s *Snapshot) { s.Artist = "X" },
		"album":         func(s *Snapshot) { s.Album = "X" },
		"volume":        func(s *Snapshot) { s.Volume = 51 },
		"system volume": func(s *Snapshot) { s.SystemVolume = 41 },
	} {
		other := base
		mutate(&other)
		if !changed(base, other) {
			t.Errorf("%s difference not reported as changed", name)
		}
	}
}
