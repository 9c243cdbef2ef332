package evictmap

// EvictionQueue は期限順に並んだエビクション待ちエントリの多重集合です。
// キューベースのスケジューラだけが使用し、ファサードは触りません。
// 同一期限のエントリが複数あっても、RemoveEntry は渡されたエントリその
// ものだけを取り除かなければならない（同一性ベースの削除）。
type EvictionQueue[K comparable, V any] interface {
	// HasEntries はキューが空でないかどうかを返します。
	HasEntries() bool

	// NextEvictionTime は最も早い期限（単調ナノ秒）を返します。空なら 0。
	NextEvictionTime() int64

	// PutEntry はエントリをその期限の位置に挿入します。
	// evictible なエントリだけが渡される。
	PutEntry(e *Entry[K, V])

	// RemoveEntry は指定されたエントリそのものを取り除きます。
	// 既にドレイン済みの場合は何もしない。
	RemoveEntry(e *Entry[K, V])

	// EvictEntries は期限が現在時刻より前のエントリをすべて取り除き、
	// それぞれのエビクションフックを呼びます。1 件以上処理した場合
	// true を返します。並行挿入との関係では、各エントリは「この
	// ドレインに観測される」か「されずスケジュール可能のまま残る」かの
	// いずれかになる。
	EvictEntries() bool
}
