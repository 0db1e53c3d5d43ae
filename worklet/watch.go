package worklet

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/yaoapp/kun/log"
)

// LoadDir register the *.js worklets of the directory, return file to hash
func LoadDir(dir string, registry *Registry) (map[string]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return nil, err
	}

	hashes := map[string]string{}
	for _, file := range files {
		hash, err := LoadFile(file, registry)
		if err != nil {
			return nil, err
		}
		hashes[filepath.Base(file)] = hash
	}
	return hashes, nil
}

// LoadFile register the worklet of the file by its content hash
func LoadFile(file string, registry *Registry) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}

	source := strings.TrimSpace(string(data))
	hash := Hash(source)
	if registry.RegisterScript(hash, source) {
		log.Info("[worklet] register %s %s", filepath.Base(file), hash)
	}
	return hash, nil
}

// Watch register the *.js worklets of the directory whenever they change, until
// the context is done. Registration is by content hash so reloading is idempotent.
func Watch(ctx context.Context, dir string, registry *Registry, onRegister func(file string, hash string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	err = watcher.Add(dir)
	if err != nil {
		return err
	}
	log.Info("[worklet] watching %s", dir)

	for {
		select {
		case <-ctx.Done():
			log.Info("[worklet] watcher exit")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Ext(event.Name) != ".js" {
				continue
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			hash, err := LoadFile(event.Name, registry)
			if err != nil {
				log.Error("[worklet] load %s: %s", event.Name, err.Error())
				continue
			}

			if onRegister != nil {
				onRegister(event.Name, hash)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("[worklet] watch error: %s", err.Error())
		}
	}
}
