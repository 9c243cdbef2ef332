package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prom は Prometheus を使ったメトリクス実装です。
type Prom struct {
	putNew    prometheus.Counter
	putUpdate prometheus.Counter
	getHit    prometheus.Counter
	getMiss   prometheus.Counter
	evicted   prometheus.Counter
	expired   prometheus.Counter
	mapSize   prometheus.Gauge
}

// NewProm は Prometheus を使ったメトリクス実装を初期化します。
func NewProm(namespace string) *Prom {
	makeC := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	makeG := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	p := &Prom{
		putNew:    makeC("put_new_total", "Number of new keys put"),
		putUpdate: makeC("put_update_total", "Number of keys updated"),
		getHit:    makeC("get_hit_total", "Number of map hits"),
		getMiss:   makeC("get_miss_total", "Number of map misses"),
		evicted:   makeC("evicted_total", "Number of entries removed by the eviction scheduler"),
		expired:   makeC("expired_total", "Number of entries removed lazily on read"),
		mapSize:   makeG("map_current_size", "Current number of entries (may include expired)"),
	}

	// Register (重複登録は無視したいので MustRegister で panic するなら再利用側で 1 回だけ呼ぶ設計)
	prometheus.MustRegister(
		p.putNew, p.putUpdate, p.getHit, p.getMiss, p.evicted, p.expired, p.mapSize,
	)
	return p
}

// IncPutNew は新しいキーが追加されたことをカウントします。
func (p *Prom) IncPutNew() { p.putNew.Inc() }

// IncPutUpdate は既存のキーが更新されたことをカウントします。
func (p *Prom) IncPutUpdate() { p.putUpdate.Inc() }

// IncGetHit はキャッシュヒットをカウントします。
func (p *Prom) IncGetHit() { p.getHit.Inc() }

// IncGetMiss はキャッシュミスをカウントします。
func (p *Prom) IncGetMiss() { p.getMiss.Inc() }

// AddEvicted はスケジューラ起因で削除されたアイテムの数を加算します。
func (p *Prom) AddEvicted(n int) {
	if n > 0 {
		p.evicted.Add(float64(n))
	}
}

// AddExpired は遅延削除で回収されたアイテムの数を加算します。
func (p *Prom) AddExpired(n int) {
	if n > 0 {
		p.expired.Add(float64(n))
	}
}

// SetMapSize は現在の要素数を設定します。
func (p *Prom) SetMapSize(n int) {
	if n >= 0 {
		p.mapSize.Set(float64(n))
	}
}
