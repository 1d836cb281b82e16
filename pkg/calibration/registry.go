package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"

	scribble "github.com/nanobox-io/golang-scribble"
	"github.com/sirupsen/logrus"
)

const collection = "calibrations"

// Registry stores named calibrations as one JSON document each and tracks
// the active one.
type Registry struct {
	db  *scribble.Driver
	log logrus.FieldLogger

	mu     sync.RWMutex
	cache  map[string]*Calibration
	active string
}

// OpenRegistry opens or creates the store in dir and loads every calibration
// found there.
func OpenRegistry(dir string, log logrus.FieldLogger) (*Registry, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	db, err := scribble.New(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open calibration store %s: %w", dir, err)
	}
	r := &Registry{
		db:    db,
		log:   log.WithField("component", "calibration"),
		cache: make(map[string]*Calibration),
	}
	if err := r.LoadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadAll reloads the cache from the store. Documents that fail validation
// are logged and skipped.
func (r *Registry) LoadAll() error {
	records, err := r.db.ReadAll(collection)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read calibrations: %w", err)
	}

	cache := make(map[string]*Calibration, len(records))
	for _, rec := range records {
		var cal Calibration
		if err := json.Unmarshal([]byte(rec), &cal); err != nil {
			r.log.Errorf("skip stored calibration: %v", err)
			continue
		}
		cache[cal.Name()] = &cal
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = cache
	if _, ok := cache[r.active]; !ok {
		r.active = ""
	}
	r.log.Infof("loaded calibrations: %s", strings.Join(sortedKeys(cache), ", "))
	return nil
}

// Save stores cal under its name, replacing any calibration of that name.
func (r *Registry) Save(cal *Calibration) error {
	name := cal.Name()
	if err := checkName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.Write(collection, name, cal); err != nil {
		return fmt.Errorf("save calibration %q: %w", name, err)
	}
	r.cache[name] = cal
	r.log.Debugf("calibration %q saved with %d standards", name, len(cal.standards))
	return nil
}

// Load reads the named calibration from the store and refreshes the cache.
func (r *Registry) Load(name string) (*Calibration, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cal := new(Calibration)
	if err := r.db.Read(collection, name, cal); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("load calibration %q: %w", name, err)
	}
	r.cache[name] = cal
	return cal, nil
}

// Get returns a cached calibration.
func (r *Registry) Get(name string) (*Calibration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cal, ok := r.cache[name]
	return cal, ok
}

// Names returns the cached calibration names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.cache)
}

// Description returns the description of the named calibration, or "".
func (r *Registry) Description(name string) string {
	if cal, ok := r.Get(name); ok {
		return cal.Description()
	}
	return ""
}

// Delete removes the named calibration. The active calibration cannot be deleted.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" && name == r.active {
		return fmt.Errorf("delete %q: %w", name, ErrActive)
	}
	if _, ok := r.cache[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := r.db.Delete(collection, name); err != nil {
		return fmt.Errorf("delete calibration %q: %w", name, err)
	}
	delete(r.cache, name)
	r.log.Debugf("calibration %q deleted", name)
	return nil
}

// SetActive selects the named calibration. An empty name selects no correction.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if _, ok := r.cache[name]; !ok {
			r.log.Warnf("calibration %q not found", name)
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
	}
	r.active = name
	if name != "" {
		r.log.Debugf("active calibration set to %s", r.cache[name])
	}
	return nil
}

// Active returns the active calibration, or the zero calibration when none is selected.
func (r *Registry) Active() *Calibration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cal, ok := r.cache[r.active]; ok && r.active != "" {
		return cal
	}
	return Zero()
}

// ActiveName returns the name of the active calibration, or "".
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func checkName(name string) error {
	switch {
	case name == "":
		return invalid("name", "must not be empty")
	case strings.ContainsAny(name, `/\`), name == "." || name == "..":
		return invalid("name", "%q is not a valid file name", name)
	}
	return nil
}

func sortedKeys(m map[string]*Calibration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
