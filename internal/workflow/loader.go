package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry holds every workflow definition loaded at startup. Definitions are
// immutable after construction, so the registry is safe for concurrent reads
// without locking.
type Registry struct {
	definitions map[string]*Definition
}

// LoadRegistry reads every *.json definition in dir and validates it.
// A single invalid file fails the whole load; configuration errors are
// administrator problems and are never silently defaulted.
func LoadRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	definitions := make(map[string]*Definition)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		def, err := loadDefinition(path)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", entry.Name(), err)
		}

		if _, exists := definitions[def.Type]; exists {
			return nil, fmt.Errorf("%w: duplicate workflow type %q", ErrDefinitionInvalid, def.Type)
		}
		definitions[def.Type] = def

		logger.Info("Loaded workflow definition",
			zap.String("type", def.Type),
			zap.Int("levels", def.TotalLevels()),
			zap.String("file", entry.Name()))
	}

	return &Registry{definitions: definitions}, nil
}

func loadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDefinitionInvalid, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Get returns the definition for a workflow type.
func (r *Registry) Get(workflowType string) (*Definition, error) {
	def, ok := r.definitions[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDefinitionNotFound, workflowType)
	}
	return def, nil
}

// Types returns the known workflow types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
