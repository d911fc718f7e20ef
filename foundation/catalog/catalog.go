// Package catalog owns the YAML-backed item list shown on the landing
// page. The backing file maps a display name to the item record; every
// load returns items sorted by ascending id so edits never reorder the
// page.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrMalformed = errors.New("catalog file is malformed")
	ErrDuplicate = errors.New("item already exists")
)

// Item is one sellable product or debtor case.
type Item struct {
	Name            string   `yaml:"-"`
	ID              int      `yaml:"id"`
	Highlights      []string `yaml:"heighlights"`
	Image           string   `yaml:"images"`
	Instruction     string   `yaml:"instruction"`
	DeparturePlace  string   `yaml:"departure_place,omitempty"`
	DeliveryCompany string   `yaml:"delivery_company_name,omitempty"`
}

// record mirrors Item on disk and tolerates the corrected spelling of the
// highlights key found in hand-edited files. Writes always use the
// original "heighlights" key so round-trips never fork the schema.
type record struct {
	ID              int      `yaml:"id"`
	Heighlights     []string `yaml:"heighlights,omitempty"`
	Highlights      []string `yaml:"highlights,omitempty"`
	Image           string   `yaml:"images"`
	Instruction     string   `yaml:"instruction"`
	DeparturePlace  string   `yaml:"departure_place,omitempty"`
	DeliveryCompany string   `yaml:"delivery_company_name,omitempty"`
}

// Store reads and appends items. The read-modify-write-backup of Append
// is one critical section; readers observe either the old or the new
// file, never a partial write.
type Store struct {
	path       string
	backupPath string
	mu         sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{
		path:       path,
		backupPath: path + ".bk",
	}
}

func (s *Store) Load() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Item, error) {
	bytes, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var records map[string]record
	if err := yaml.Unmarshal(bytes, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	items := make([]Item, 0, len(records))
	for name, r := range records {
		highlights := r.Heighlights
		if len(highlights) == 0 {
			highlights = r.Highlights
		}
		items = append(items, Item{
			Name:            name,
			ID:              r.ID,
			Highlights:      highlights,
			Image:           r.Image,
			Instruction:     r.Instruction,
			DeparturePlace:  r.DeparturePlace,
			DeliveryCompany: r.DeliveryCompany,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// Append assigns the next id, backs up the current file to <path>.bk and
// replaces the catalog atomically. The assigned id is returned.
func (s *Store) Append(item Item) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return 0, err
	}

	maxID := 0
	for _, existing := range items {
		if existing.Name == item.Name {
			return 0, fmt.Errorf("item[%s]: %w", item.Name, ErrDuplicate)
		}
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	item.ID = maxID + 1

	records := make(map[string]record, len(items)+1)
	for _, existing := range items {
		records[existing.Name] = toRecord(existing)
	}
	records[item.Name] = toRecord(item)

	out, err := yaml.Marshal(records)
	if err != nil {
		return 0, err
	}

	previous, err := os.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(s.backupPath, previous, 0o644); err != nil {
		return 0, err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return 0, err
	}

	return item.ID, nil
}

func toRecord(item Item) record {
	return record{
		ID:              item.ID,
		Heighlights:     item.Highlights,
		Image:           item.Image,
		Instruction:     item.Instruction,
		DeparturePlace:  item.DeparturePlace,
		DeliveryCompany: item.DeliveryCompany,
	}
}
