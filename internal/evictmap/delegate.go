package evictmap

import (
	"sync"
	"sync/atomic"
)

// delegate はキー→エントリの実体を保持するシャード分割された並行マップです。
// ファサードだけが挿入と同一性ベースの削除を行い、スケジューラは触らない。
// 同一性（ポインタ一致）での remove/replace を備えることで、ファサードと
// スケジューラの競合時にちょうど一方だけが勝つことを保証する。
type delegate[K comparable, V any] struct {
	shards []dshard[K, V]
	mask   uint32
	count  atomic.Int64
}

type dshard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]*Entry[K, V]
}

func newDelegate[K comparable, V any](shards int) *delegate[K, V] {
	shards = nextPowerOfTwo(shards)
	d := &delegate[K, V]{
		shards: make([]dshard[K, V], shards),
		mask:   uint32(shards - 1),
	}
	for i := range d.shards {
		d.shards[i].m = make(map[K]*Entry[K, V])
	}
	return d
}

func (d *delegate[K, V]) shard(key K) *dshard[K, V] {
	return &d.shards[hashKey(key)&d.mask]
}

func (d *delegate[K, V]) get(key K) (*Entry[K, V], bool) {
	sh := d.shard(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	sh.mu.RUnlock()
	return e, ok
}

// put は無条件にエントリを差し替え、置き換えられた旧エントリを返します。
func (d *delegate[K, V]) put(key K, e *Entry[K, V]) *Entry[K, V] {
	sh := d.shard(key)
	sh.mu.Lock()
	old := sh.m[key]
	sh.m[key] = e
	sh.mu.Unlock()
	if old == nil {
		d.count.Add(1)
	}
	return old
}

// putIfAbsent は不在時のみ挿入します。挿入できた場合は nil、
// 既存があった場合はその既存エントリを返します。
func (d *delegate[K, V]) putIfAbsent(key K, e *Entry[K, V]) *Entry[K, V] {
	sh := d.shard(key)
	sh.mu.Lock()
	if old, ok := sh.m[key]; ok {
		sh.mu.Unlock()
		return old
	}
	sh.m[key] = e
	sh.mu.Unlock()
	d.count.Add(1)
	return nil
}

// remove はキーでエントリを取り除き、存在していた場合それを返します。
func (d *delegate[K, V]) remove(key K) *Entry[K, V] {
	sh := d.shard(key)
	sh.mu.Lock()
	old, ok := sh.m[key]
	if ok {
		delete(sh.m, key)
	}
	sh.mu.Unlock()
	if ok {
		d.count.Add(-1)
	}
	return old
}

// removeEntry は現在格納されているエントリが e と同一の場合だけ取り除きます。
func (d *delegate[K, V]) removeEntry(e *Entry[K, V]) bool {
	sh := d.shard(e.key)
	sh.mu.Lock()
	cur, ok := sh.m[e.key]
	if !ok || cur != e {
		sh.mu.Unlock()
		return false
	}
	delete(sh.m, e.key)
	sh.mu.Unlock()
	d.count.Add(-1)
	return true
}

// replace はキーが存在する場合だけエントリを差し替え、旧エントリを返します。
func (d *delegate[K, V]) replace(key K, e *Entry[K, V]) *Entry[K, V] {
	sh := d.shard(key)
	sh.mu.Lock()
	old, ok := sh.m[key]
	if !ok {
		sh.mu.Unlock()
		return nil
	}
	sh.m[key] = e
	sh.mu.Unlock()
	return old
}

// replaceEntry は現在格納されているエントリが old と同一の場合だけ
// next へ差し替えます。
func (d *delegate[K, V]) replaceEntry(old, next *Entry[K, V]) bool {
	sh := d.shard(old.key)
	sh.mu.Lock()
	cur, ok := sh.m[old.key]
	if !ok || cur != old {
		sh.mu.Unlock()
		return false
	}
	sh.m[old.key] = next
	sh.mu.Unlock()
	return true
}

// len は期限切れ未回収分を含む現在の要素数を返します（弱一貫）。
func (d *delegate[K, V]) len() int {
	return int(d.count.Load())
}

// entries は全シャードのスナップショットを返します。弱一貫なビューで、
// clear や containsValue の走査に使う。
func (d *delegate[K, V]) entries() []*Entry[K, V] {
	out := make([]*Entry[K, V], 0, d.len())
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mu.RLock()
		for _, e := range sh.m {
			out = append(out, e)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (d *delegate[K, V]) clear() {
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mu.Lock()
		n := len(sh.m)
		sh.m = make(map[K]*Entry[K, V])
		sh.mu.Unlock()
		d.count.Add(int64(-n))
	}
}
