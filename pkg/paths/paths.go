package paths

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/autobrr/propfilter/pkg/logger"
)

type Path struct {
	Path         string
	FileName     string
	Directory    string
	Size         int64
	ModifiedTime time.Time
}

type callbackAllowed func(string) bool

var (
	log = logger.GetLogger("paths")
)

// InFolder traverses the provided folder and returns the files accepted by acceptFn
// together with their total size. Results are sorted by path.
func InFolder(folder string, acceptFn callbackAllowed) ([]Path, uint64) {
	var paths []Path
	var size uint64 = 0
	var mutex sync.Mutex

	conf := fastwalk.Config{
		Follow: false,
	}

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).Errorf("Error accessing path %q during walk", path)
			if os.IsPermission(err) {
				log.Warnf("Permission error on %q, continuing walk if possible...", path)
			}
			return nil
		}

		if path == folder || d.IsDir() {
			return nil
		}

		if acceptFn != nil && !acceptFn(path) {
			log.Tracef("Skipping rejected path: %s", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.WithError(err).Errorf("Failed to get file info for %s", path)
			return nil
		}

		foundPath := Path{
			Path:         path,
			FileName:     info.Name(),
			Directory:    filepath.Dir(path),
			Size:         info.Size(),
			ModifiedTime: info.ModTime(),
		}

		mutex.Lock()
		paths = append(paths, foundPath)
		size += uint64(info.Size())
		mutex.Unlock()

		return nil
	}

	err := fastwalk.Walk(&conf, folder, walkFn)
	if err != nil {
		log.WithError(err).Errorf("Failed to walk directory %s", folder)
	}

	// walk order is not stable
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	return paths, size
}

// SpecFiles returns the .json filter spec files below folder, skipping
// paths that start with any entry of ignoreList.
func SpecFiles(folder string, ignoreList []string) ([]Path, uint64) {
	return InFolder(folder, func(path string) bool {
		if IsIgnored(path, ignoreList) {
			return false
		}
		return strings.EqualFold(filepath.Ext(path), ".json")
	})
}

// IsIgnored checks if a path is in the provided ignore list
func IsIgnored(path string, ignoreList []string) bool {
	return slices.ContainsFunc(ignoreList, func(s string) bool {
		return strings.HasPrefix(path, s)
	})
}
