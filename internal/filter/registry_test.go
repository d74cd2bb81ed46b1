package filter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dispatchboard/internal/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter_config.json")
	registry, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func TestBootstrapDefault(t *testing.T) {
	registry := newTestRegistry(t)

	def, ok := registry.Get(models.DefaultFilterName)
	if !ok {
		t.Fatal("bootstrap did not create the default filter")
	}
	if !def.Enabled {
		t.Error("default filter should be enabled")
	}
	if len(def.Conditions) != 1 {
		t.Fatalf("default filter should have 1 condition, got %d", len(def.Conditions))
	}
	cond := def.Conditions[0]
	if cond.Field != "status" || cond.Operator != "not_in" {
		t.Errorf("unexpected default condition: %+v", cond)
	}
	if registry.ActiveFilter() != models.DefaultFilterName {
		t.Errorf("active filter = %q, want %q", registry.ActiveFilter(), models.DefaultFilterName)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter_config.json")

	registry, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	conds := []models.Condition{{Field: "assignee", Operator: "equals", Value: "李雷"}}
	if err := registry.Add("mine", conds, true, "and"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := registry.SetActive("mine"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	reopened, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ActiveFilter() != "mine" {
		t.Errorf("active filter after reopen = %q, want mine", reopened.ActiveFilter())
	}
	def, ok := reopened.Get("mine")
	if !ok {
		t.Fatal("filter mine lost across reopen")
	}
	if len(def.Conditions) != 1 || def.Conditions[0].Field != "assignee" {
		t.Errorf("conditions lost across reopen: %+v", def.Conditions)
	}
}

func TestAddOverwritesDuplicate(t *testing.T) {
	registry := newTestRegistry(t)

	first := []models.Condition{{Field: "status", Operator: "equals", Value: "进行中"}}
	second := []models.Condition{{Field: "priority", Operator: "equals", Value: "紧急"}}
	if err := registry.Add("dup", first, true, "and"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := registry.Add("dup", second, false, "or"); err != nil {
		t.Fatalf("Add overwrite: %v", err)
	}

	def, _ := registry.Get("dup")
	if def.Enabled {
		t.Error("overwrite should have disabled the filter")
	}
	if def.Logic != "or" || def.Conditions[0].Field != "priority" {
		t.Errorf("last write did not win: %+v", def)
	}
}

func TestUpdatePartial(t *testing.T) {
	registry := newTestRegistry(t)
	conds := []models.Condition{{Field: "status", Operator: "equals", Value: "进行中"}}
	if err := registry.Add("f", conds, true, "and"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	disabled := false
	if err := registry.Update("f", nil, &disabled, ""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	def, _ := registry.Get("f")
	if def.Enabled {
		t.Error("enabled not updated")
	}
	if def.Logic != "and" || len(def.Conditions) != 1 {
		t.Errorf("untouched fields changed: %+v", def)
	}
}

func TestUpdateUnknownName(t *testing.T) {
	registry := newTestRegistry(t)
	err := registry.Update("ghost", nil, nil, "or")
	if !errors.Is(err, ErrFilterNotFound) {
		t.Fatalf("Update unknown = %v, want ErrFilterNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	registry := newTestRegistry(t)
	if err := registry.Add("temp", nil, true, "and"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := registry.SetActive("temp"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	if err := registry.Remove("temp"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := registry.Get("temp"); ok {
		t.Error("removed filter still present")
	}
	if registry.ActiveFilter() != models.DefaultFilterName {
		t.Errorf("active should reset to default, got %q", registry.ActiveFilter())
	}

	// Removing an unknown name is a no-op.
	if err := registry.Remove("ghost"); err != nil {
		t.Fatalf("Remove unknown: %v", err)
	}
}

func TestSetActiveUnknown(t *testing.T) {
	registry := newTestRegistry(t)
	if err := registry.SetActive("ghost"); !errors.Is(err, ErrFilterNotFound) {
		t.Fatalf("SetActive unknown = %v, want ErrFilterNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	registry := newTestRegistry(t)

	def, name, err := registry.Resolve("")
	if err != nil {
		t.Fatalf("Resolve active: %v", err)
	}
	if name != models.DefaultFilterName || def == nil {
		t.Errorf("Resolve active = (%v, %q)", def, name)
	}

	if _, _, err := registry.Resolve("ghost"); !errors.Is(err, ErrFilterNotFound) {
		t.Fatalf("Resolve unknown = %v, want ErrFilterNotFound", err)
	}
}

func TestNamesSorted(t *testing.T) {
	registry := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Add(name, nil, true, "and"); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}

	names := registry.Names()
	want := []string{"alpha", "default", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestCorruptFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter_config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := NewRegistry(path); err == nil {
		t.Fatal("corrupt config should fail to load")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	registry := newTestRegistry(t)
	def, _ := registry.Get(models.DefaultFilterName)
	def.Conditions[0].Field = "mutated"

	fresh, _ := registry.Get(models.DefaultFilterName)
	if fresh.Conditions[0].Field == "mutated" {
		t.Error("Get should return an independent copy")
	}
}
