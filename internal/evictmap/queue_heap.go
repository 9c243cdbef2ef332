package evictmap

import (
	"container/heap"
	"sync"
)

// heapQueueItem はヒープ内の位置を自分で覚えておく要素です。
// index はヒープから外れたとき -1 になり、RemoveEntry のドレイン済み判定に使う。
type heapQueueItem[K comparable, V any] struct {
	entry *Entry[K, V]
	index int
}

type entryHeap[K comparable, V any] []*heapQueueItem[K, V]

func (h entryHeap[K, V]) Len() int { return len(h) }

func (h entryHeap[K, V]) Less(i, j int) bool {
	return h[i].entry.Deadline() < h[j].entry.Deadline()
}

func (h entryHeap[K, V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *entryHeap[K, V]) Push(x any) {
	it := x.(*heapQueueItem[K, V])
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *entryHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// HeapEvictionQueue は container/heap による優先度キュー実装です。
// 任意エントリの削除はヒープ項目が保持する index 経由で O(log n)。
// SortedMapEvictionQueue と同じく、挿入・削除・ドレインは単一の
// ミューテックスで直列化される。差し替え可能性のために提供している。
type HeapEvictionQueue[K comparable, V any] struct {
	mu sync.Mutex
	h  entryHeap[K, V]
}

// NewHeapEvictionQueue は新しい HeapEvictionQueue を作成します。
func NewHeapEvictionQueue[K comparable, V any]() *HeapEvictionQueue[K, V] {
	return &HeapEvictionQueue[K, V]{}
}

// HasEntries はキューが空でないかどうかを返します。
func (q *HeapEvictionQueue[K, V]) HasEntries() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h) > 0
}

// NextEvictionTime は最も早い期限を返します。空なら 0。
func (q *HeapEvictionQueue[K, V]) NextEvictionTime() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return 0
	}
	return q.h[0].entry.Deadline()
}

// PutEntry はエントリをヒープへ挿入します。ヒープ項目をエントリの
// ハンドルスロットへ記録し、RemoveEntry が同一性で取り除けるようにする。
func (q *HeapEvictionQueue[K, V]) PutEntry(e *Entry[K, V]) {
	// index -1 のままハンドルを先に公開しておく。挿入前に競合した
	// RemoveEntry はドレイン済みと同じ扱いで no-op になる。
	it := &heapQueueItem[K, V]{entry: e, index: -1}
	e.data.Store(it)
	q.mu.Lock()
	heap.Push(&q.h, it)
	q.mu.Unlock()
}

// RemoveEntry は指定されたエントリそのものを取り除きます。
func (q *HeapEvictionQueue[K, V]) RemoveEntry(e *Entry[K, V]) {
	it, ok := e.data.Load().(*heapQueueItem[K, V])
	if !ok {
		return
	}
	q.mu.Lock()
	if it.index >= 0 {
		heap.Remove(&q.h, it.index)
	}
	q.mu.Unlock()
}

// EvictEntries は期限切れエントリをすべて取り除き、フックを呼びます。
func (q *HeapEvictionQueue[K, V]) EvictEntries() bool {
	now := nanotime()
	var due []*Entry[K, V]
	q.mu.Lock()
	for len(q.h) > 0 && q.h[0].entry.Deadline() < now {
		it := heap.Pop(&q.h).(*heapQueueItem[K, V])
		due = append(due, it.entry)
	}
	q.mu.Unlock()

	for _, e := range due {
		e.doEvict(false)
	}
	return len(due) > 0
}
