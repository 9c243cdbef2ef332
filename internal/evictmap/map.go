package evictmap

import (
	"time"

	"github.com/amakane-hakari/kairos/internal/metrics"
)

// Map はエントリごとの TTL 付き並行マップです。格納はシャード分割された
// デリゲートに、タイマの張り外しは EvictionScheduler に委譲する。
//
// 期限切れのエントリは、スケジューラ起因のエビクションか、読み取り操作が
// 期限超過を観測した時点の遅延削除のいずれかで取り除かれる。Range と Keys
// を除く読み取り操作は、期限切れを観測したらそのエントリを同一性ベースで
// 取り除き、スケジューラのハンドルを解放する。Range と Keys は期限切れを
// 読み飛ばすだけで取り除かない。
//
// TTL はすべて書き込み時に固定され、アクセスでは更新されない。TTL 0 は
// 永続を表し、スケジューラとは一切やり取りしない。負の TTL は
// ErrNegativeTTL で panic する。
type Map[K comparable, V comparable] struct {
	cfg       Config
	delegate  *delegate[K, V]
	scheduler EvictionScheduler[K, V]
	evictHook evictFunc[K, V]

	ownsScheduler bool
}

// New は ThreadScheduler を所有する Map を作成します。作成された
// スケジューラは Close で停止される。
func New[K comparable, V comparable](opts ...Option) *Map[K, V] {
	m := NewWithScheduler[K, V](NewThreadScheduler[K, V](nil), opts...)
	m.ownsScheduler = true
	return m
}

// NewWithScheduler は指定のスケジューラを使う Map を作成します。
// スケジューラの停止は呼び出し側の責務で、複数のマップで共有してよい。
// scheduler が nil の場合は NoopScheduler（遅延削除のみ）になる。
func NewWithScheduler[K comparable, V comparable](scheduler EvictionScheduler[K, V], opts ...Option) *Map[K, V] {
	cfg := Config{Shards: defaultShards}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Shards < 1 {
		cfg.Shards = defaultShards
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if scheduler == nil {
		scheduler = NoopScheduler[K, V]{}
	}

	m := &Map[K, V]{
		cfg:       cfg,
		delegate:  newDelegate[K, V](cfg.Shards),
		scheduler: scheduler,
	}
	m.evictHook = func(e *Entry[K, V], cancelPending bool) {
		m.evictEntry(e, cancelPending)
	}
	return m
}

// Close は Map が所有するスケジューラを停止します。共有スケジューラの
// 場合は何もしない。
func (m *Map[K, V]) Close() {
	if m.ownsScheduler {
		m.scheduler.Shutdown()
	}
}

// Get はキーに対応する生存中の値を返します。期限切れを観測した場合は
// その場で取り除き、不在として扱う。
func (m *Map[K, V]) Get(key K) (V, bool) {
	var zero V
	e, ok := m.delegate.get(key)
	if !ok || m.evictIfExpired(e) {
		m.cfg.Metrics.IncGetMiss()
		return zero, false
	}
	m.cfg.Metrics.IncGetHit()
	return e.Value(), true
}

// ContainsKey はキーが生存中かどうかを返します。Get と同じ遅延削除規則に従う。
func (m *Map[K, V]) ContainsKey(key K) bool {
	e, ok := m.delegate.get(key)
	return ok && !m.evictIfExpired(e)
}

// ContainsValue は値が生存中のいずれかのエントリに格納されているかを
// 走査します。走査中に観測した期限切れエントリはその場で取り除く。
func (m *Map[K, V]) ContainsValue(value V) bool {
	for _, e := range m.delegate.entries() {
		if m.evictIfExpired(e) {
			continue
		}
		if e.Value() == value {
			return true
		}
	}
	return false
}

// Put はキーと値を TTL 付きで格納し、以前の生存中の値があればそれを
// 返します。ttl 0 は永続（タイマなし）。
func (m *Map[K, V]) Put(key K, value V, ttl time.Duration) (V, bool) {
	e := newEntry(key, value, ttl, m.evictHook)
	oe := m.delegate.put(key, e)
	if oe != nil {
		// 置き換えられた旧エントリのタイマを外す
		m.scheduler.CancelEviction(oe)
		m.cfg.Metrics.IncPutUpdate()
	} else {
		m.cfg.Metrics.IncPutNew()
	}
	m.scheduler.ScheduleEviction(e)
	m.cfg.Metrics.SetMapSize(m.delegate.len())

	if m.cfg.Logger != nil {
		if oe != nil {
			m.cfg.Logger.Debug("map.update", "key", key)
		} else {
			m.cfg.Logger.Debug("map.put", "key", key, "ttl", ttl.String())
		}
	}

	var zero V
	if oe == nil || oe.ShouldEvict() {
		return zero, false
	}
	return oe.Value(), true
}

// PutIfAbsent は不在時のみ格納します。挿入できた場合は (zero, false)、
// 生存中の既存があった場合はその値と true を返す。期限切れの既存は
// その場で取り除いて再試行する。
func (m *Map[K, V]) PutIfAbsent(key K, value V, ttl time.Duration) (V, bool) {
	for {
		e := newEntry(key, value, ttl, m.evictHook)
		oe := m.delegate.putIfAbsent(key, e)
		if oe == nil {
			m.scheduler.ScheduleEviction(e)
			m.cfg.Metrics.IncPutNew()
			m.cfg.Metrics.SetMapSize(m.delegate.len())
			if m.cfg.Logger != nil {
				m.cfg.Logger.Debug("map.put", "key", key, "ttl", ttl.String())
			}
			var zero V
			return zero, false
		}
		if m.evictIfExpired(oe) {
			continue
		}
		return oe.Value(), true
	}
}

// Delete はキーを取り除き、以前の生存中の値があればそれを返します。
func (m *Map[K, V]) Delete(key K) (V, bool) {
	oe := m.delegate.remove(key)
	if oe != nil {
		m.scheduler.CancelEviction(oe)
		m.cfg.Metrics.SetMapSize(m.delegate.len())
		if m.cfg.Logger != nil {
			m.cfg.Logger.Debug("map.delete", "key", key)
		}
	}
	var zero V
	if oe == nil || oe.ShouldEvict() {
		return zero, false
	}
	return oe.Value(), true
}

// CompareAndDelete は現在の値が value と等しい場合だけキーを取り除きます。
func (m *Map[K, V]) CompareAndDelete(key K, value V) bool {
	oe, ok := m.delegate.get(key)
	if !ok || m.evictIfExpired(oe) || oe.Value() != value {
		return false
	}
	removed := m.delegate.removeEntry(oe)
	// 競合で同一性削除が負けていてもハンドルは解放してよい
	m.scheduler.CancelEviction(oe)
	if removed {
		m.cfg.Metrics.SetMapSize(m.delegate.len())
		if m.cfg.Logger != nil {
			m.cfg.Logger.Debug("map.delete", "key", key)
		}
	}
	return removed
}

// Replace はキーが生存中の場合だけ値を TTL 付きで差し替え、以前の値を
// 返します。不在または期限切れなら何もしない。
func (m *Map[K, V]) Replace(key K, value V, ttl time.Duration) (V, bool) {
	var zero V
	// 期限切れエントリを差し替えてしまわないよう先に確認する
	oe, ok := m.delegate.get(key)
	if !ok || m.evictIfExpired(oe) {
		return zero, false
	}

	e := newEntry(key, value, ttl, m.evictHook)
	oe = m.delegate.replace(key, e)
	if oe != nil {
		// 実際に置き換えられたエントリのタイマを外し、新エントリを張る
		m.scheduler.CancelEviction(oe)
		m.scheduler.ScheduleEviction(e)
		m.cfg.Metrics.IncPutUpdate()
		if m.cfg.Logger != nil {
			m.cfg.Logger.Debug("map.replace", "key", key, "ttl", ttl.String())
		}
		return oe.Value(), true
	}
	return zero, false
}

// CompareAndReplace は現在の値が old と等しい場合だけ next へ TTL 付きで
// 差し替えます。差し替えは同一性ベースで行われ、並行する置き換えや
// エビクションと競合した場合は false を返す。
func (m *Map[K, V]) CompareAndReplace(key K, old, next V, ttl time.Duration) bool {
	oe, ok := m.delegate.get(key)
	if !ok || m.evictIfExpired(oe) || oe.Value() != old {
		return false
	}

	e := newEntry(key, next, ttl, m.evictHook)
	replaced := m.delegate.replaceEntry(oe, e)
	if replaced {
		m.scheduler.CancelEviction(oe)
		m.scheduler.ScheduleEviction(e)
		m.cfg.Metrics.IncPutUpdate()
		if m.cfg.Logger != nil {
			m.cfg.Logger.Debug("map.replace", "key", key, "ttl", ttl.String())
		}
	}
	return replaced
}

// Clear は保留中のエビクションをすべてキャンセルしてからデリゲートを
// 空にします。並行して発火したタイマはエントリがもう存在しないため
// no-op になる。
func (m *Map[K, V]) Clear() {
	for _, e := range m.delegate.entries() {
		m.scheduler.CancelEviction(e)
	}
	m.delegate.clear()
	m.cfg.Metrics.SetMapSize(0)
	if m.cfg.Logger != nil {
		m.cfg.Logger.Info("map.clear")
	}
}

// Len は期限切れ未回収分を含みうる現在の要素数を返します（弱一貫）。
func (m *Map[K, V]) Len() int {
	return m.delegate.len()
}

// Range は生存中の各エントリに対して f を呼びます。弱一貫なイテレーション
// で、期限切れのエントリは読み飛ばす（削除はしない）。f が false を返したら
// 打ち切る。
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for _, e := range m.delegate.entries() {
		if e.ShouldEvict() {
			continue
		}
		if !f(e.Key(), e.Value()) {
			return
		}
	}
}

// Keys は生存中のキーのスナップショットを返します（弱一貫）。
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.delegate.len())
	m.Range(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// evictIfExpired は読み取り側の遅延削除です。期限切れを観測したら
// エントリを取り除いてスケジューラのハンドルも解放する。
func (m *Map[K, V]) evictIfExpired(e *Entry[K, V]) bool {
	if !e.ShouldEvict() {
		return false
	}
	m.evictEntry(e, true)
	return true
}

// evictEntry はエントリを同一性ベースでデリゲートから取り除きます。
// cancelPending が false の場合はスケジューラのドレイン経路からの呼び出し
// で、キューからの除去はドレイン自身が済ませているため cancel を重ねない。
func (m *Map[K, V]) evictEntry(e *Entry[K, V], cancelPending bool) {
	if m.delegate.removeEntry(e) {
		if cancelPending {
			m.cfg.Metrics.AddExpired(1)
			if m.cfg.Logger != nil {
				m.cfg.Logger.Debug("map.expired", "key", e.Key())
			}
		} else {
			m.cfg.Metrics.AddEvicted(1)
			if m.cfg.Logger != nil {
				m.cfg.Logger.Debug("map.evict", "key", e.Key())
			}
		}
		m.cfg.Metrics.SetMapSize(m.delegate.len())
	}
	if cancelPending {
		m.scheduler.CancelEviction(e)
	}
}
