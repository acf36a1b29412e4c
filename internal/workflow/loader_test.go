package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeDefinitionFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const expenseDefinitionJSON = `{
	"type": "expense",
	"title": "Expense Request",
	"fields": [{"name": "amount", "label": "Amount", "type": "number", "required": true}],
	"approvers": {"strategy": "sequential", "levels": [{"members": ["U1", "U2"], "quorum": 1}]},
	"notify_channel": "C01TEST"
}`

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "expense.json", expenseDefinitionJSON)
	writeDefinitionFile(t, dir, "notes.txt", "not a definition")

	registry, err := LoadRegistry(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}

	def, err := registry.Get("expense")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if def.Title != "Expense Request" || def.TotalLevels() != 1 {
		t.Errorf("unexpected definition: %+v", def)
	}

	if types := registry.Types(); len(types) != 1 || types[0] != "expense" {
		t.Errorf("Types() = %v", types)
	}
}

func TestLoadRegistry_UnknownType(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "expense.json", expenseDefinitionJSON)

	registry, err := LoadRegistry(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := registry.Get("travel"); !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrDefinitionNotFound", err)
	}
}

func TestLoadRegistry_InvalidDefinitionFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "broken.json", `{"type": "broken", "title": "Broken"}`)

	if _, err := LoadRegistry(dir, zap.NewNop()); !errors.Is(err, ErrDefinitionInvalid) {
		t.Errorf("LoadRegistry() error = %v, want ErrDefinitionInvalid", err)
	}
}

func TestLoadRegistry_DuplicateType(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "a.json", expenseDefinitionJSON)
	writeDefinitionFile(t, dir, "b.json", expenseDefinitionJSON)

	if _, err := LoadRegistry(dir, zap.NewNop()); err == nil {
		t.Error("duplicate workflow types must fail the load")
	}
}
