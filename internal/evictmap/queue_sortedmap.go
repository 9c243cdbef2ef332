package evictmap

import (
	"sync"

	"github.com/google/btree"
)

// sortedQueueItem は (期限, 挿入連番) の複合キーで順序付けされる要素です。
// 連番は同一期限のエントリ同士を識別するためのもので、挿入時に採番して
// エントリのハンドルスロットへ記録する。
type sortedQueueItem[K comparable, V any] struct {
	deadline int64
	seq      uint64
	entry    *Entry[K, V]
}

// SortedMapEvictionQueue は期限をキーとするソート済みマップによる
// エビクションキューの既定実装です。最早期限の取得が O(log n)、
// 任意エントリの削除も O(log n) で済む。
type SortedMapEvictionQueue[K comparable, V any] struct {
	mu   sync.Mutex
	tree *btree.BTreeG[sortedQueueItem[K, V]]
	seq  uint64
}

// NewSortedMapEvictionQueue は新しい SortedMapEvictionQueue を作成します。
func NewSortedMapEvictionQueue[K comparable, V any]() *SortedMapEvictionQueue[K, V] {
	less := func(a, b sortedQueueItem[K, V]) bool {
		if a.deadline != b.deadline {
			return a.deadline < b.deadline
		}
		return a.seq < b.seq
	}
	return &SortedMapEvictionQueue[K, V]{tree: btree.NewG(8, less)}
}

// HasEntries はキューが空でないかどうかを返します。
func (q *SortedMapEvictionQueue[K, V]) HasEntries() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tree.Len() > 0
}

// NextEvictionTime は最も早い期限を返します。空なら 0。
func (q *SortedMapEvictionQueue[K, V]) NextEvictionTime() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if it, ok := q.tree.Min(); ok {
		return it.deadline
	}
	return 0
}

// PutEntry はエントリをその期限の位置に挿入します。
func (q *SortedMapEvictionQueue[K, V]) PutEntry(e *Entry[K, V]) {
	q.mu.Lock()
	q.seq++
	e.data.Store(q.seq)
	q.tree.ReplaceOrInsert(sortedQueueItem[K, V]{deadline: e.Deadline(), seq: q.seq, entry: e})
	q.mu.Unlock()
}

// RemoveEntry は指定されたエントリそのものを取り除きます。
func (q *SortedMapEvictionQueue[K, V]) RemoveEntry(e *Entry[K, V]) {
	seq, ok := e.data.Load().(uint64)
	if !ok {
		return
	}
	q.mu.Lock()
	q.tree.Delete(sortedQueueItem[K, V]{deadline: e.Deadline(), seq: seq})
	q.mu.Unlock()
}

// EvictEntries は期限切れエントリをすべて取り除き、フックを呼びます。
// フックはロックの外で呼ぶ。取り除かれたエントリに対する並行の
// RemoveEntry は木に存在しないため単なる no-op になる。
func (q *SortedMapEvictionQueue[K, V]) EvictEntries() bool {
	now := nanotime()
	var due []*Entry[K, V]
	q.mu.Lock()
	for {
		it, ok := q.tree.Min()
		if !ok || it.deadline >= now {
			break
		}
		q.tree.DeleteMin()
		due = append(due, it.entry)
	}
	q.mu.Unlock()

	for _, e := range due {
		e.doEvict(false)
	}
	return len(due) > 0
}
