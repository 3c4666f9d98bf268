package permission

import "testing"

func TestCatalogEntriesAreUniqueAndValid(t *testing.T) {
	seen := make(map[Action]bool)
	for _, def := range Catalog() {
		if def.Action == "" {
			t.Fatalf("catalog contains empty action")
		}
		if seen[def.Action] {
			t.Fatalf("duplicate catalog action %s", def.Action)
		}
		seen[def.Action] = true
		if !IsValid(def.Action) {
			t.Fatalf("catalog action %s not valid", def.Action)
		}
		if def.Category == "" || def.Resource == "" || def.Verb == "" {
			t.Fatalf("catalog action %s missing triple fields", def.Action)
		}
	}
}

func TestIsValidRejectsUnknownAction(t *testing.T) {
	if IsValid(Action("order.teleport")) {
		t.Fatalf("unknown action reported valid")
	}
	if IsValid(Action("")) {
		t.Fatalf("empty action reported valid")
	}
}

func TestActionsMatchesCatalogOrder(t *testing.T) {
	defs := Catalog()
	actions := Actions()
	if len(defs) != len(actions) {
		t.Fatalf("length mismatch: %d vs %d", len(defs), len(actions))
	}
	for i := range defs {
		if defs[i].Action != actions[i] {
			t.Fatalf("order mismatch at %d: %s vs %s", i, defs[i].Action, actions[i])
		}
	}
}

func TestFromLegacyIsTotalOverKnownValues(t *testing.T) {
	for l := LegacyManageUsers; l <= LegacyViewAuditTrail; l++ {
		mapped := FromLegacy(l)
		if !IsValid(mapped) {
			t.Fatalf("legacy value %d maps to invalid action %q", l, mapped)
		}
	}
	if got := FromLegacy(LegacyAction(999)); got != "" {
		t.Fatalf("unknown legacy value should map to empty action, got %q", got)
	}
	if IsValid(FromLegacy(LegacyAction(0))) {
		t.Fatalf("zero legacy value must not map into the catalog")
	}
}

func TestSetOperations(t *testing.T) {
	s := NewSet(TaskView, AttendanceClock)
	if !s.Has(TaskView) || s.Has(UserCreate) {
		t.Fatalf("membership wrong")
	}
	if !s.HasAny(UserCreate, TaskView) {
		t.Fatalf("HasAny should match TaskView")
	}
	if s.HasAll(TaskView, UserCreate) {
		t.Fatalf("HasAll should miss UserCreate")
	}
	u := s.Union(NewSet(UserCreate, TaskView))
	if len(u) != 3 {
		t.Fatalf("union size = %d, want 3", len(u))
	}
	list := u.List()
	for i := 1; i < len(list); i++ {
		if list[i-1] >= list[i] {
			t.Fatalf("List not sorted: %v", list)
		}
	}
}
