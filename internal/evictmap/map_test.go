package evictmap

import (
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

// lazyMap は遅延削除だけに頼るマップを作る。タイミングをテスト側で
// 完全に制御できる。
func lazyMap(opts ...Option) *Map[string, string] {
	return NewWithScheduler[string, string](NoopScheduler[string, string]{}, opts...)
}

func TestMap_PutGetDelete(t *testing.T) {
	m := lazyMap()

	if _, ok := m.Put("foo", "bar", 0); ok {
		t.Fatalf("first put must not report a previous value")
	}
	if v, ok := m.Get("foo"); !ok || v != "bar" {
		t.Fatalf("expected bar, got %v", v)
	}

	if _, ok := m.Get("baz"); ok {
		t.Fatalf("expected baz to not exist")
	}

	if v, ok := m.Delete("foo"); !ok || v != "bar" {
		t.Fatalf("delete must return the previous value")
	}
	if _, ok := m.Get("foo"); ok {
		t.Fatalf("expected foo to be deleted")
	}
}

func TestMap_PutReturnsPrevious(t *testing.T) {
	m := lazyMap()

	m.Put("k", "v1", 0)
	if prev, ok := m.Put("k", "v2", 0); !ok || prev != "v1" {
		t.Fatalf("put over live entry must return previous, got %q ok=%v", prev, ok)
	}
	if v, _ := m.Get("k"); v != "v2" {
		t.Fatalf("stored value want v2 got %q", v)
	}
}

func TestMap_PutOverExpiredReportsAbsent(t *testing.T) {
	m := lazyMap()

	m.Put("k", "v1", time.Nanosecond)
	time.Sleep(time.Millisecond)

	// 期限切れスロットは「以前の値なし」として扱う
	if prev, ok := m.Put("k", "v2", 0); ok {
		t.Fatalf("expired slot must be reported absent, got %q", prev)
	}
}

func TestMap_PutIfAbsent(t *testing.T) {
	m := lazyMap()

	if _, ok := m.PutIfAbsent("k", "v1", 50*time.Millisecond); ok {
		t.Fatalf("insert into empty slot must succeed")
	}
	if cur, ok := m.PutIfAbsent("k", "v2", 50*time.Millisecond); !ok || cur != "v1" {
		t.Fatalf("second call must return the existing value, got %q ok=%v", cur, ok)
	}
	if v, _ := m.Get("k"); v != "v1" {
		t.Fatalf("mapping must stay at v1, got %q", v)
	}
}

func TestMap_PutIfAbsentRetriesExpiredSlot(t *testing.T) {
	m := lazyMap()

	m.Put("k", "stale", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := m.PutIfAbsent("k", "fresh", 0); ok {
		t.Fatalf("expired slot must be lazily evicted and the insert retried")
	}
	if v, _ := m.Get("k"); v != "fresh" {
		t.Fatalf("stored value want fresh got %q", v)
	}
}

func TestMap_CompareAndDelete(t *testing.T) {
	m := lazyMap()
	m.Put("k", "v", 0)

	if m.CompareAndDelete("k", "other") {
		t.Fatalf("mismatched value must not delete")
	}
	if !m.CompareAndDelete("k", "v") {
		t.Fatalf("matching value must delete")
	}
	if m.CompareAndDelete("k", "v") {
		t.Fatalf("second delete must report false")
	}
}

func TestMap_CompareAndDeleteExpired(t *testing.T) {
	m := lazyMap()
	m.Put("k", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	if m.CompareAndDelete("k", "v") {
		t.Fatalf("expired entry must be treated as absent")
	}
	if m.Len() != 0 {
		t.Fatalf("lazy eviction must have removed the entry")
	}
}

func TestMap_Replace(t *testing.T) {
	m := lazyMap()

	if _, ok := m.Replace("k", "v", 0); ok {
		t.Fatalf("replace on absent key must fail")
	}

	m.Put("k", "v1", 0)
	if prev, ok := m.Replace("k", "v2", 0); !ok || prev != "v1" {
		t.Fatalf("replace must return previous value, got %q ok=%v", prev, ok)
	}
	if v, _ := m.Get("k"); v != "v2" {
		t.Fatalf("stored value want v2 got %q", v)
	}
}

func TestMap_ReplaceExpired(t *testing.T) {
	m := lazyMap()
	m.Put("k", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	if _, ok := m.Replace("k", "v2", 0); ok {
		t.Fatalf("replace on expired entry must fail")
	}
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expired entry must be gone")
	}
}

func TestMap_CompareAndReplace(t *testing.T) {
	m := lazyMap()
	m.Put("k", "v1", 0)

	if m.CompareAndReplace("k", "wrong", "v2", 0) {
		t.Fatalf("mismatched old value must not replace")
	}
	if !m.CompareAndReplace("k", "v1", "v2", 0) {
		t.Fatalf("matching old value must replace")
	}
	if v, _ := m.Get("k"); v != "v2" {
		t.Fatalf("stored value want v2 got %q", v)
	}
}

func TestMap_LazyExpiryWithoutScheduler(t *testing.T) {
	m := lazyMap()

	m.Put("k", "a", 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	// スケジューラがないので未回収のまま残っていてよい
	if l := m.Len(); l != 1 {
		t.Fatalf("len before lazy eviction want 1 got %d", l)
	}
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expired entry must be reported absent")
	}
	if l := m.Len(); l != 0 {
		t.Fatalf("read must have lazily evicted: len want 0 got %d", l)
	}
}

func TestMap_ContainsValueScanEvicts(t *testing.T) {
	m := lazyMap()

	m.Put("1", "a", 30*time.Millisecond)
	m.Put("2", "a", 80*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	if !m.ContainsValue("a") {
		t.Fatalf("live entry with value must be found")
	}
	if m.ContainsKey("1") {
		t.Fatalf("expired key must be absent")
	}
	if !m.ContainsKey("2") {
		t.Fatalf("live key must be present")
	}

	time.Sleep(60 * time.Millisecond)

	if m.ContainsValue("a") {
		t.Fatalf("all entries expired, value must not be found")
	}
	if l := m.Len(); l != 0 {
		t.Fatalf("scan must have evicted everything: len want 0 got %d", l)
	}
}

func TestMap_Clear(t *testing.T) {
	m := lazyMap()
	for i := 0; i < 50; i++ {
		m.Put("k"+strconv.Itoa(i), "v", time.Hour)
	}
	m.Clear()
	if l := m.Len(); l != 0 {
		t.Fatalf("len after clear want 0 got %d", l)
	}
}

func TestMap_RangeHidesExpired(t *testing.T) {
	m := lazyMap()
	m.Put("live", "v", 0)
	m.Put("stale", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	var seen []string
	m.Range(func(key, _ string) bool {
		seen = append(seen, key)
		return true
	})
	if len(seen) != 1 || seen[0] != "live" {
		t.Fatalf("range must hide expired entries, got %v", seen)
	}

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("keys must hide expired entries, got %v", keys)
	}
}

func TestMap_ZeroTTLIsPermanent(t *testing.T) {
	m := lazyMap()
	m.Put("k", "v", 0)
	time.Sleep(30 * time.Millisecond)
	if v, ok := m.Get("k"); !ok || v != "v" {
		t.Fatalf("permanent entry must survive, got %q ok=%v", v, ok)
	}
}

func TestMap_NegativeTTLPanics(t *testing.T) {
	m := lazyMap()
	defer func() {
		if r := recover(); r != ErrNegativeTTL {
			t.Fatalf("want panic with ErrNegativeTTL, got %v", r)
		}
	}()
	m.Put("k", "v", -time.Second)
}

func TestMap_Concurrency(t *testing.T) {
	m := New[string, string]()
	defer m.Close()

	const n = 1000
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := "k" + strconv.Itoa(i)
			m.Put(k, "v", 0)
			if _, ok := m.Get(k); !ok {
				t.Errorf("missing key %s", k)
			}
			m.Delete(k)
		}(i)
	}
	wg.Wait()

	if l := m.Len(); l != 0 {
		t.Fatalf("expected len=0 got %d", l)
	}
}
