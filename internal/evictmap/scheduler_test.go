package evictmap

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func schedulerVariants() map[string]func() EvictionScheduler[string, string] {
	return map[string]func() EvictionScheduler[string, string]{
		"timer": func() EvictionScheduler[string, string] {
			return NewTimerScheduler[string, string]()
		},
		"interval": func() EvictionScheduler[string, string] {
			return NewIntervalScheduler[string, string](5*time.Millisecond, nil)
		},
		"delayed": func() EvictionScheduler[string, string] {
			return NewDelayedScheduler[string, string](nil)
		},
		"thread": func() EvictionScheduler[string, string] {
			return NewThreadScheduler[string, string](nil)
		},
		"thread-heap": func() EvictionScheduler[string, string] {
			return NewThreadScheduler[string, string](NewHeapEvictionQueue[string, string]())
		},
	}
}

// waitUntil は cond が成立するまで最大 timeout ポーリングする。
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestSchedulers_BasicExpiry(t *testing.T) {
	for name, newScheduler := range schedulerVariants() {
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			defer s.Shutdown()
			m := NewWithScheduler[string, string](s)

			m.Put("k", "a", 40*time.Millisecond)

			if v, ok := m.Get("k"); !ok || v != "a" {
				t.Fatalf("entry must be visible before expiry")
			}

			// Get を呼ばずにデリゲートから消えること＝スケジューラ起因の削除
			if !waitUntil(t, time.Second, func() bool { return m.Len() == 0 }) {
				t.Fatalf("scheduler must evict the expired entry, len=%d", m.Len())
			}
			if _, ok := m.Get("k"); ok {
				t.Fatalf("expired entry must be absent")
			}
		})
	}
}

func TestSchedulers_NoPrematureEviction(t *testing.T) {
	for name, newScheduler := range schedulerVariants() {
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			defer s.Shutdown()
			m := NewWithScheduler[string, string](s)

			m.Put("k", "a", 150*time.Millisecond)
			time.Sleep(50 * time.Millisecond)
			if v, ok := m.Get("k"); !ok || v != "a" {
				t.Fatalf("entry evicted before its deadline")
			}
		})
	}
}

func TestSchedulers_CancelOnDelete(t *testing.T) {
	for name, newScheduler := range schedulerVariants() {
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			defer s.Shutdown()
			m := NewWithScheduler[string, string](s)

			m.Put("gone", "a", 30*time.Millisecond)
			m.Put("stay", "b", 0)
			m.Delete("gone")

			time.Sleep(80 * time.Millisecond)

			if _, ok := m.Get("stay"); !ok {
				t.Fatalf("permanent entry must survive")
			}
			if l := m.Len(); l != 1 {
				t.Fatalf("len want 1 got %d", l)
			}
		})
	}
}

func TestSchedulers_ReplaceThenExpire(t *testing.T) {
	for name, newScheduler := range schedulerVariants() {
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			defer s.Shutdown()
			m := NewWithScheduler[string, string](s)

			// 長い期限のエントリを短い期限で置き換える。古いタイマは
			// キャンセルされ、新しいほうが発火すること。
			m.Put("k", "a", 500*time.Millisecond)
			m.Put("k", "b", 40*time.Millisecond)

			if v, ok := m.Get("k"); !ok || v != "b" {
				t.Fatalf("replacement must be visible, got %q ok=%v", v, ok)
			}

			if !waitUntil(t, time.Second, func() bool { return m.Len() == 0 }) {
				t.Fatalf("the shorter deadline must fire, len=%d", m.Len())
			}
		})
	}
}

func TestSchedulers_RearmForEarlierDeadline(t *testing.T) {
	// delayed / thread は最早期限の変化で張り直す
	for _, name := range []string{"delayed", "thread"} {
		newScheduler := schedulerVariants()[name]
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			defer s.Shutdown()
			m := NewWithScheduler[string, string](s)

			m.Put("late", "a", 500*time.Millisecond)
			m.Put("early", "b", 30*time.Millisecond)

			if !waitUntil(t, 300*time.Millisecond, func() bool { return !m.ContainsKey("early") }) {
				t.Fatalf("earlier deadline must fire without waiting for the later one")
			}
			if !m.ContainsKey("late") {
				t.Fatalf("later entry must still be alive")
			}
		})
	}
}

func TestSchedulers_ShutdownStopsEviction(t *testing.T) {
	for name, newScheduler := range schedulerVariants() {
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			m := NewWithScheduler[string, string](s)

			m.Put("k", "a", 40*time.Millisecond)
			s.Shutdown()

			// Shutdown 後の schedule は黙って無視される
			m.Put("k2", "b", 40*time.Millisecond)

			time.Sleep(100 * time.Millisecond)

			// スケジューラ起因の削除は起きないが、読み取りの遅延削除は生きている
			if l := m.Len(); l != 2 {
				t.Fatalf("no scheduler-driven eviction after shutdown: len want 2 got %d", l)
			}
			if _, ok := m.Get("k"); ok {
				t.Fatalf("lazy expiry must still work after shutdown")
			}
			if _, ok := m.Get("k2"); ok {
				t.Fatalf("lazy expiry must still work after shutdown")
			}
		})
	}
}

func TestSchedulers_ClearCancelsAll(t *testing.T) {
	for name, newScheduler := range schedulerVariants() {
		t.Run(name, func(t *testing.T) {
			s := newScheduler()
			defer s.Shutdown()
			m := NewWithScheduler[string, string](s)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for round := 0; round < 5; round++ {
					for i := 0; i < 200; i++ {
						m.Put("k"+strconv.Itoa(i), "v", 2*time.Millisecond)
					}
				}
			}()

			time.Sleep(3 * time.Millisecond)
			m.Clear()
			wg.Wait()

			// 残った短命エントリがすべて片付くまで静置
			if !waitUntil(t, time.Second, func() bool { return m.Len() == 0 }) {
				t.Fatalf("map must quiesce to empty, len=%d", m.Len())
			}
		})
	}
}

func TestIntervalScheduler_PanicsOnNonPositiveDelay(t *testing.T) {
	defer func() {
		if r := recover(); r != ErrNonPositiveDelay {
			t.Fatalf("want panic with ErrNonPositiveDelay, got %v", r)
		}
	}()
	NewIntervalScheduler[string, string](0, nil)
}

func TestIntervalScheduler_DeactivatesWhenEmpty(t *testing.T) {
	s := NewIntervalScheduler[string, string](2*time.Millisecond, nil)
	defer s.Shutdown()
	m := NewWithScheduler[string, string](s)

	m.Put("k", "v", 10*time.Millisecond)
	if !s.active.Load() {
		t.Fatalf("scheduler must activate on first schedule")
	}

	if !waitUntil(t, time.Second, func() bool { return !s.active.Load() }) {
		t.Fatalf("scheduler must deactivate once the queue is empty")
	}
	if m.Len() != 0 {
		t.Fatalf("entry must have been evicted")
	}
}

func TestThreadScheduler_ShutdownTwice(t *testing.T) {
	s := NewThreadScheduler[string, string](nil)
	s.Shutdown()
	s.Shutdown() // 二重 Shutdown が安全なこと
}

func TestNoopScheduler(t *testing.T) {
	s := NoopScheduler[string, string]{}
	e := newEntry("k", "v", time.Millisecond, noopHook[string, string]())
	s.ScheduleEviction(e)
	s.CancelEviction(e)
	s.Shutdown()
}
