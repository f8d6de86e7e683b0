package bus

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/simon987/irarchives-go/internal/logging"
)

// LoadSubreddits reads a newline-delimited subreddit list file,
// skipping blank lines and "#"-prefixed comments.
func LoadSubreddits(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var subs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		subs = append(subs, line)
	}
	return subs, scanner.Err()
}

// WatchSubreddits watches path for changes and calls onChange with the
// freshly reloaded subreddit list whenever it changes, until ctx is
// cancelled. Errors reading the file after a change are logged and
// skipped — the previous binding set remains active.
func WatchSubreddits(ctx context.Context, path string, onChange func([]string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	log := logging.For("bus.subreddits")
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				subs, err := LoadSubreddits(path)
				if err != nil {
					log.WithError(err).Warn("reload subreddit list failed")
					continue
				}
				onChange(subs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("subreddit list watcher error")
			}
		}
	}()
	return nil
}
