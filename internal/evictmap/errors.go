package evictmap

import "errors"

// 引数検査の失敗は呼び出し側のバグなので、標準ライブラリの
// time.NewTicker などと同じく呼び出し時点で panic にする。
// panic 値にはここで定義するエラーを使う。
var (
	// ErrNegativeTTL は負の TTL が指定されたことを表します。
	ErrNegativeTTL = errors.New("evictmap: ttl must not be negative")

	// ErrNonPositiveDelay は IntervalScheduler に 0 以下の周期が指定されたことを表します。
	ErrNonPositiveDelay = errors.New("evictmap: interval delay must be positive")
)
