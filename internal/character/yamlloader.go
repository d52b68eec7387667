package character

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RosterFile is the top-level structure of an Aikata character roster YAML
// file. The roster is read once at startup by the app wiring, which feeds
// each definition into the configured [Store]; the engine itself owns no
// serialization format.
//
// Example:
//
//	roster:
//	  name: "default"
//	characters:
//	  - name: "mira"
//	    display_name: "Mira"
//	    enabled: true
//	    model:
//	      ref: "models/mira.model3.json"
//	      format: "live2d"
type RosterFile struct {
	Roster     RosterMeta   `yaml:"roster"`
	Characters []Definition `yaml:"characters"`
}

// RosterMeta holds top-level metadata for a roster.
type RosterMeta struct {
	// Name is the roster's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary of the roster.
	Description string `yaml:"description"`
}

// LoadRosterFile reads and parses a roster YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadRosterFile(path string) (*RosterFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("character: open roster file %q: %w", path, err)
	}
	defer f.Close()

	rf, err := LoadRosterFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("character: parse roster file %q: %w", path, err)
	}
	return rf, nil
}

// LoadRosterFromReader parses roster YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadRosterFromReader(r io.Reader) (*RosterFile, error) {
	var rf RosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown top-level keys to catch typos
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("character: decode roster yaml: %w", err)
	}
	return &rf, nil
}

// ImportRoster imports all characters from a parsed [RosterFile] into store.
// Returns the number of characters successfully imported.
// An error from the store aborts the import and returns the count so far.
func ImportRoster(ctx context.Context, store Store, roster *RosterFile) (int, error) {
	if roster == nil {
		return 0, fmt.Errorf("character: roster must not be nil")
	}
	n, err := store.BulkImport(ctx, roster.Characters)
	if err != nil {
		return n, fmt.Errorf("character: import roster %q: %w", roster.Roster.Name, err)
	}
	return n, nil
}
