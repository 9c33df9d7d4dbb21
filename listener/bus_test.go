package listener_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
)

func TestBus_NotifyOrder(t *testing.T) {
	bus := listener.New()
	var calls []string

	bus.Subscribe(func() { calls = append(calls, "a") })
	bus.Subscribe(func() { calls = append(calls, "b") })
	bus.Subscribe(func() { calls = append(calls, "c") })

	bus.Notify()
	bus.Notify()

	want := []string{"a", "b", "c", "a", "b", "c"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("notification order mismatch (-want +got):\n%s", diff)
	}
}

func TestBus_SubscribeUnsubscribeInterleaved(t *testing.T) {
	tests := []struct {
		name  string
		steps []string // "+x" subscribe x, "-x" unsubscribe x, "n" notify
		want  []string
	}{
		{
			name:  "unsubscribe middle",
			steps: []string{"+a", "+b", "+c", "-b", "n"},
			want:  []string{"a", "c"},
		},
		{
			name:  "resubscribe goes to the end",
			steps: []string{"+a", "+b", "-a", "+a", "n"},
			want:  []string{"b", "a"},
		},
		{
			name:  "notify between changes",
			steps: []string{"+a", "n", "+b", "n", "-a", "n"},
			want:  []string{"a", "a", "b", "b"},
		},
		{
			name:  "double unsubscribe is a no-op",
			steps: []string{"+a", "+b", "-a", "-a", "n"},
			want:  []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := listener.New()
			unsubs := map[string]listener.Unsubscribe{}
			var calls []string

			for _, step := range tt.steps {
				switch {
				case step == "n":
					bus.Notify()
				case step[0] == '+':
					name := step[1:]
					unsubs[name] = bus.Subscribe(func() { calls = append(calls, name) })
				case step[0] == '-':
					unsubs[step[1:]]()
				}
			}

			if diff := cmp.Diff(tt.want, calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBus_SameFunctionTwice(t *testing.T) {
	bus := listener.New()
	count := 0
	fn := func() { count++ }

	unsub1 := bus.Subscribe(fn)
	bus.Subscribe(fn)

	unsub1()
	bus.Notify()

	if count != 1 {
		t.Errorf("count = %d, want 1 (only one registration removed)", count)
	}
}

func TestBus_SubscribeDuringNotify(t *testing.T) {
	bus := listener.New()
	added := 0
	lateCalls := 0

	bus.Subscribe(func() {
		if added == 0 {
			added++
			bus.Subscribe(func() { lateCalls++ })
		}
	})

	bus.Notify()
	if lateCalls != 0 {
		t.Errorf("listener added during pass was called %d times in that pass", lateCalls)
	}

	bus.Notify()
	if lateCalls != 1 {
		t.Errorf("lateCalls = %d after second pass, want 1", lateCalls)
	}
}

func TestBus_UnsubscribeDuringNotify(t *testing.T) {
	bus := listener.New()
	var unsubB listener.Unsubscribe
	var calls []string

	bus.Subscribe(func() {
		calls = append(calls, "a")
		unsubB()
	})
	unsubB = bus.Subscribe(func() { calls = append(calls, "b") })

	bus.Notify()

	if diff := cmp.Diff([]string{"a"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if bus.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bus.Len())
	}
}

func TestBus_PanickingListener(t *testing.T) {
	rec := &observability.Recorder{}
	bus := listener.New(listener.WithObserver(rec), listener.WithSource("test-panics"))
	var calls []string

	bus.Subscribe(func() { calls = append(calls, "a") })
	bus.Subscribe(func() { panic("boom") })
	bus.Subscribe(func() { calls = append(calls, "c") })

	bus.Notify()

	if diff := cmp.Diff([]string{"a", "c"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	panics := rec.OfType(listener.EventListenerPanic)
	if len(panics) != 1 {
		t.Fatalf("recorded %d panic events, want 1", len(panics))
	}
	if panics[0].Data["panic"] != "boom" {
		t.Errorf("panic event data = %v, want boom", panics[0].Data["panic"])
	}
	if panics[0].Level != observability.LevelError {
		t.Errorf("panic event level = %v, want ERROR", panics[0].Level)
	}
}

func TestBus_PauseResume(t *testing.T) {
	bus := listener.New()
	count := 0
	bus.Subscribe(func() { count++ })

	bus.Pause()
	bus.Notify()
	bus.Notify()
	bus.Pause()
	bus.Notify()
	bus.Resume()

	if count != 0 {
		t.Fatalf("count = %d while paused, want 0", count)
	}

	bus.Resume()
	if count != 1 {
		t.Errorf("count = %d after resume, want 1", count)
	}

	bus.Resume()
	if count != 1 {
		t.Errorf("extra Resume notified: count = %d", count)
	}
}

func TestBus_ResumeWithoutNotify(t *testing.T) {
	bus := listener.New()
	count := 0
	bus.Subscribe(func() { count++ })

	bus.Pause()
	bus.Resume()

	if count != 0 {
		t.Errorf("count = %d, want 0 when nothing was notified", count)
	}
}

func TestBus_ConcurrentSubscribeNotify(t *testing.T) {
	bus := listener.New()
	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
			bus.Notify()
			unsub()
		}()
	}
	wg.Wait()

	if bus.Len() != 0 {
		t.Errorf("Len() = %d after all unsubscribed, want 0", bus.Len())
	}
	if count == 0 {
		t.Error("no listener was notified")
	}
}
