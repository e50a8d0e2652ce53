// Package thermal resolves logical sensor names to thermal zones and samples
// their temperatures.
package thermal

import (
	"errors"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sweeney/charge-limiter/internal/sysfs"
)

const zonePrefix = "thermal_zone"

// Resolver maps logical sensor names to thermal zone ids by scanning zone
// type labels. A label matches when it starts with the logical name.
// Hits are cached; the mapping is stable for the lifetime of a boot.
type Resolver struct {
	fs *sysfs.FS

	mu          sync.Mutex
	cache       map[string]int
	warned      map[string]bool
	missingOnce sync.Once
}

// NewResolver creates a resolver reading zones under fs.
func NewResolver(fs *sysfs.FS) *Resolver {
	return &Resolver{
		fs:     fs,
		cache:  make(map[string]int),
		warned: make(map[string]bool),
	}
}

// Resolve returns the zone id whose label has name as a prefix.
// ok is false when nothing matches, including when the thermal class is
// missing entirely; callers fall back to another sensor.
func (r *Resolver) Resolve(name string) (id int, ok bool) {
	r.mu.Lock()
	id, ok = r.cache[name]
	r.mu.Unlock()
	if ok {
		return id, true
	}

	ids, err := r.zones()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.missingOnce.Do(func() {
				log.Printf("thermal: %s missing, no sensors can be resolved", sysfs.ThermalDir)
			})
		} else {
			log.Printf("thermal: enumerate zones: %v", err)
		}
		return -1, false
	}

	for _, zid := range ids {
		label, err := r.fs.ReadLine(zonePath(zid, "type"))
		if err != nil || label == "" {
			r.warnOnce(zid, err)
			continue
		}
		if strings.HasPrefix(label, name) {
			r.mu.Lock()
			r.cache[name] = zid
			r.mu.Unlock()
			return zid, true
		}
	}
	return -1, false
}

// Forget drops a cached mapping so the next Resolve rescans.
func (r *Resolver) Forget(name string) {
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
}

// ReadTemp reads the zone temperature in milli-degrees Celsius.
func (r *Resolver) ReadTemp(id int) (int, error) {
	return r.fs.ReadInt(zonePath(id, "temp"))
}

// zones lists zone ids in ascending numeric order.
func (r *Resolver) zones() ([]int, error) {
	names, err := r.fs.List(sysfs.ThermalDir, zonePrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(names))
	for _, n := range names {
		id, err := strconv.Atoi(strings.TrimPrefix(n, zonePrefix))
		if err != nil || id < 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *Resolver) warnOnce(id int, err error) {
	key := zonePrefix + strconv.Itoa(id)
	r.mu.Lock()
	seen := r.warned[key]
	r.warned[key] = true
	r.mu.Unlock()
	if seen {
		return
	}
	if err == nil {
		log.Printf("thermal: %s: empty type label, skipping", key)
		return
	}
	log.Printf("thermal: %s: read type: %v, skipping", key, err)
}

func zonePath(id int, attr string) string {
	return path.Join(sysfs.ThermalDir, zonePrefix+strconv.Itoa(id), attr)
}
