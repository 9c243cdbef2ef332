package evictmap

import "time"

// 期限の計算はすべて単調クロック基準で行う。壁時計の補正（NTP 等）に
// 影響されないよう、プロセス内の基準時点からの経過ナノ秒を使う。
var monoBase = time.Now()

// nanotime は単調ナノ秒での現在時刻を返します。
// 期限 0 を「永続」の番兵として使うため、戻り値は正であることを前提にする
// （evictible なエントリの期限は必ず ttl >= 1ns 分だけ進んでいる）。
func nanotime() int64 {
	return int64(time.Since(monoBase))
}
