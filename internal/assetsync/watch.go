package assetsync

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchSource recursively registers every directory under root with an
// fsnotify watcher and returns a trigger channel suitable for Manager.Start,
// plus a stop function that closes the underlying watcher. Events are
// coalesced: a burst of filesystem changes produces at most one pending
// trigger, since SyncOnce always re-diffs the whole tree anyway.
func WatchSource(root string, log *logrus.Entry) (<-chan struct{}, func() error, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	trigger := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				log.Debugf("watch: %s %s", event.Op, event.Name)
				select {
				case trigger <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("watch error: %v", err)
			}
		}
	}()

	return trigger, watcher.Close, nil
}
