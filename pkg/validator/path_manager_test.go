package validator

import "testing"

func TestPathManagerHierarchy(t *testing.T) {
	pm := NewPathManager()

	if got := pm.GetParentPath("address.street"); got != "address" {
		t.Fatalf("expected parent address, got %q", got)
	}
	if got := pm.TopLevelKey("emergencyContact.phone.mobile"); got != "emergencyContact" {
		t.Fatalf("expected top level emergencyContact, got %q", got)
	}
	if got := pm.GetPathDepth("a.b.c"); got != 3 {
		t.Fatalf("expected depth 3, got %d", got)
	}
	if !pm.Covers("address", "address") || !pm.Covers("address", "address.city") {
		t.Fatalf("expected address to cover itself and its children")
	}
	if pm.Covers("address", "addressLine") {
		t.Fatalf("prefix match must respect path boundaries")
	}
}

func TestPathManagerValidateKeys(t *testing.T) {
	pm := NewPathManager()

	ok := map[string]any{"address": map[string]any{"street": "1 High St"}, "roles": []any{map[string]any{"name": "coach"}}}
	if err := pm.ValidateKeys("", ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := map[string]any{"address": map[string]any{"line.1": "1 High St"}}
	if err := pm.ValidateKeys("", bad); err == nil {
		t.Fatalf("expected dotted key to be rejected")
	}
}
