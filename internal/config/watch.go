package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	ilog "github.com/amakane-hakari/kairos/internal/log"
)

// Watch は path の変更を監視し、ファイルが書き換わるたびに読み込み直した
// Config で onChange を呼びます。ctx がキャンセルされるまで動き続ける。
//
// 再読み込みに失敗した場合（不正な YAML 等）はエラーをログに残し、
// 直前の設定のまま onChange は呼ばない。
func Watch(ctx context.Context, path string, l ilog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	l.Info("config.watch", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// 書き込みと作成のみ対象。エディタによってはアトミック保存で
			// rename されるため Create も拾う。
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				l.Error("config.reload.failed", "path", path, "err", err)
				continue
			}

			l.Info("config.reloaded", "path", path)
			onChange(cfg)

			// アトミック保存で inode が差し替わった場合に備えて追加し直す
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Error("config.watch.error", "err", err)
		}
	}
}
