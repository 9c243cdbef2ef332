package metrics

import (
	"sync/atomic"
)

// Interface はメトリクス更新用抽象
type Interface interface {
	IncPutNew()
	IncPutUpdate()
	IncGetHit()
	IncGetMiss()
	AddEvicted(n int)
	AddExpired(n int)
	SetMapSize(n int)
}

// Noop は何もしないメトリクス実装
type Noop struct{}

// IncPutNew は何もしないメトリクス実装
func (Noop) IncPutNew() {}

// IncPutUpdate は何もしないメトリクス実装
func (Noop) IncPutUpdate() {}

// IncGetHit は何もしないメトリクス実装
func (Noop) IncGetHit() {}

// IncGetMiss は何もしないメトリクス実装
func (Noop) IncGetMiss() {}

// AddEvicted は何もしないメトリクス実装
func (Noop) AddEvicted(_ int) {}

// AddExpired は何もしないメトリクス実装
func (Noop) AddExpired(_ int) {}

// SetMapSize は何もしないメトリクス実装
func (Noop) SetMapSize(_ int) {}

// Simple はシンプルなメトリクス実装です。
type Simple struct {
	PutNew    atomic.Uint64
	PutUpdate atomic.Uint64
	GetHit    atomic.Uint64
	GetMiss   atomic.Uint64
	Evicted   atomic.Uint64
	Expired   atomic.Uint64
	MapSize   atomic.Uint64
}

// NewSimple は新しい Simple メトリクスを作成します。
func NewSimple() *Simple { return &Simple{} }

// IncPutNew は新しいキーが追加されたことをカウントします。
func (m *Simple) IncPutNew() { m.PutNew.Add(1) }

// IncPutUpdate は既存のキーが更新されたことをカウントします。
func (m *Simple) IncPutUpdate() { m.PutUpdate.Add(1) }

// IncGetHit はキャッシュヒットをカウントします。
func (m *Simple) IncGetHit() { m.GetHit.Add(1) }

// IncGetMiss はキャッシュミスをカウントします。
func (m *Simple) IncGetMiss() { m.GetMiss.Add(1) }

// AddEvicted はスケジューラ起因で削除されたアイテムの数を加算します。
func (m *Simple) AddEvicted(n int) {
	if n > 0 {
		m.Evicted.Add(uint64(n))
	}
}

// AddExpired は読み取り時の遅延削除で回収されたアイテムの数を加算します。
func (m *Simple) AddExpired(n int) {
	if n > 0 {
		m.Expired.Add(uint64(n))
	}
}

// SetMapSize は現在の要素数を設定します。
func (m *Simple) SetMapSize(n int) {
	if n >= 0 {
		m.MapSize.Store(uint64(n))
	}
}
