// Package registry stores the records of finished scans.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/projectdiscovery/netscan/pkg/types"
)

// ErrNotFound is returned for an unknown scan id
var ErrNotFound = errors.New("scan not found")

// Registry is an append-only list of scan records. Ids are assigned on
// append from a counter that is never reset, so an id is never reused even
// after Clear.
type Registry struct {
	mu      sync.RWMutex
	records []types.ScanRecord
	lastID  int
	path    string
}

// New returns an in-memory registry
func New() *Registry {
	return &Registry{}
}

// Append assigns the next id to record, stores it and returns the stored copy
func (r *Registry) Append(record types.ScanRecord) types.ScanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	record.ID = r.lastID
	record = cloneRecord(record)
	r.records = append(r.records, record)
	r.persist()

	return cloneRecord(record)
}

// All returns every record, oldest first
func (r *Registry) All() []types.ScanRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]types.ScanRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, cloneRecord(record))
	}
	return records
}

// Get returns the record with the given id
func (r *Registry) Get(id int) (types.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := slices.IndexFunc(r.records, func(record types.ScanRecord) bool {
		return record.ID == id
	})
	if idx < 0 {
		return types.ScanRecord{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return cloneRecord(r.records[idx]), nil
}

// Clear removes all records. The id counter keeps counting.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = nil
	r.persist()
}

// Export returns the record as indented JSON
func (r *Registry) Export(id int) ([]byte, error) {
	record, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(record, "", "  ")
}

// Len returns the number of stored records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// LastID returns the most recently assigned id, 0 before the first append
func (r *Registry) LastID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastID
}

// cloneRecord copies the hosts so callers cannot mutate stored records.
// nil stays nil, which keeps failed records distinct from empty scans.
func cloneRecord(record types.ScanRecord) types.ScanRecord {
	record.Hosts = slices.Clone(record.Hosts)
	return record
}
