package plugin

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aihub/internal/domain"
)

// AgentEntry is an agent found on disk.
type AgentEntry struct {
	Metadata domain.AgentMetadata
	Dir      string
}

// maxScanDepth matches the namespace/name/version registry layout.
const maxScanDepth = 3

// ScanAgents walks root looking for agent directories that carry a
// metadata descriptor. Malformed or incomplete descriptors are skipped.
// Entries are sorted by identifier.
func ScanAgents(root string) ([]AgentEntry, error) {
	var entries []AgentEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && path == root {
				return fs.SkipAll
			}
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		depth := 0
		if rel != "." {
			depth = len(strings.Split(filepath.ToSlash(rel), "/"))
		}
		if depth > maxScanDepth || (depth > 0 && strings.HasPrefix(d.Name(), ".")) {
			return fs.SkipDir
		}

		meta, err := ReadMetadata(path)
		if err != nil {
			return nil
		}
		entries = append(entries, AgentEntry{Metadata: meta, Dir: path})
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("scan agents %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Metadata.Identifier() < entries[j].Metadata.Identifier()
	})
	return entries, nil
}

// ReadMetadata decodes and validates the descriptor in dir.
func ReadMetadata(dir string) (domain.AgentMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, domain.MetadataFile))
	if err != nil {
		return domain.AgentMetadata{}, err
	}
	return DecodeMetadata(data)
}

// DecodeMetadata parses a descriptor and checks its required keys.
func DecodeMetadata(data []byte) (domain.AgentMetadata, error) {
	var m domain.AgentMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return m, domain.NewSubSystemError("agent", "DecodeMetadata", domain.ErrMissingMetadata, err.Error())
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}
