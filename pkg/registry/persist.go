package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/pkg/types"
	fileutil "github.com/projectdiscovery/utils/file"
	"github.com/tidwall/gjson"
)

const fileVersion = 1

// resultsFile is the on-disk layout of a persisted registry
type resultsFile struct {
	Version int                `json:"version"`
	LastID  int                `json:"last_id"`
	Results []types.ScanRecord `json:"results"`
}

// Open returns a registry persisted to path. Existing results are loaded and
// the id counter resumes after the highest stored id. Every later append or
// clear rewrites the file.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path}
	if !fileutil.FileExists(path) {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading results file: %v", err)
	}
	if len(data) == 0 {
		return r, nil
	}

	var stored resultsFile
	switch parsed := gjson.ParseBytes(data); {
	case parsed.IsArray():
		// Bare list of records, as written by export
		if err := json.Unmarshal(data, &stored.Results); err != nil {
			return nil, fmt.Errorf("error parsing results file: %v", err)
		}
	case parsed.Get("version").Int() > fileVersion:
		return nil, fmt.Errorf("results file version %d is newer than supported version %d", parsed.Get("version").Int(), fileVersion)
	default:
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("error parsing results file: %v", err)
		}
	}

	r.lastID = stored.LastID
	for _, record := range stored.Results {
		if err := record.Validate(); err != nil {
			gologger.Warning().Msgf("skipping stored scan %d: %v", record.ID, err)
			continue
		}
		r.records = append(r.records, record)
		r.lastID = max(r.lastID, record.ID)
	}
	return r, nil
}

// persist writes the registry to disk. Callers hold the write lock.
// Failures are logged and the in-memory state stays authoritative.
func (r *Registry) persist() {
	if r.path == "" {
		return
	}
	if err := r.save(); err != nil {
		gologger.Warning().Msgf("error saving results: %v", err)
	}
}

func (r *Registry) save() error {
	data, err := json.Marshal(resultsFile{
		Version: fileVersion,
		LastID:  r.lastID,
		Results: r.records,
	})
	if err != nil {
		return fmt.Errorf("error marshaling results: %v", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating results directory: %v", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
