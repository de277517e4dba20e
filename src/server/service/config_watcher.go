package services

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/apimgr/ecogarden/src/config"
)

// ConfigWatcher watches server.yml for changes and triggers reload
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	reloadFunc func(*config.AppConfig) error
	debounce   time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewConfigWatcher creates a new config file watcher
func NewConfigWatcher(configPath string, reloadFunc func(*config.AppConfig) error) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ConfigWatcher{
		watcher:    watcher,
		configPath: configPath,
		reloadFunc: reloadFunc,
		debounce:   500 * time.Millisecond,
		stopChan:   make(chan struct{}),
	}, nil
}

// Start begins watching the config file for changes
func (cw *ConfigWatcher) Start() error {
	// Watch the directory: editors replace files instead of writing in place
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return err
	}

	log.Printf("👁️  Watching for config file changes: %s", cw.configPath)

	go func() {
		var debounceTimer *time.Timer

		for {
			select {
			case event, ok := <-cw.watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != filepath.Clean(cw.configPath) {
					continue
				}

				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					if debounceTimer != nil {
						debounceTimer.Stop()
					}
					debounceTimer = time.AfterFunc(cw.debounce, cw.reload)
				}

			case err, ok := <-cw.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  Config watcher error: %v", err)

			case <-cw.stopChan:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				log.Println("👁️  Stopping config file watcher")
				return
			}
		}
	}()

	return nil
}

func (cw *ConfigWatcher) reload() {
	log.Println("🔄 Config file changed, reloading...")

	newCfg, err := config.Load(cw.configPath)
	if err != nil {
		log.Printf("❌ Failed to load new config: %v", err)
		return
	}

	if err := cw.reloadFunc(newCfg); err != nil {
		log.Printf("❌ Failed to apply new config: %v", err)
		return
	}

	log.Println("✅ Configuration reloaded")
}

// Stop stops the config file watcher
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		err = cw.watcher.Close()
	})
	return err
}
