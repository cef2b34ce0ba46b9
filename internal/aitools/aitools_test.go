package aitools

import "testing"

func TestFindKnownAndUnknown(t *testing.T) {
	if _, ok := Find("claude"); !ok {
		t.Fatal("expected claude to be found in the catalog")
	}
	if _, ok := Find("not-a-real-tool"); ok {
		t.Fatal("expected an unknown tool name to not be found")
	}
}

func TestNamesMatchesCatalogLength(t *testing.T) {
	if got, want := len(Names()), len(Catalog); got != want {
		t.Fatalf("got %d names, want %d", got, want)
	}
}

func TestExpandAllMatchesNames(t *testing.T) {
	all := ExpandAll()
	names := Names()
	if len(all) != len(names) {
		t.Fatalf("got %d, want %d", len(all), len(names))
	}
	for i := range all {
		if all[i] != names[i] {
			t.Fatalf("ExpandAll()[%d] = %q, want %q", i, all[i], names[i])
		}
	}
}

func TestEveryToolHasANonEmptyCommand(t *testing.T) {
	for _, tool := range Catalog {
		if tool.Command == "" {
			t.Fatalf("tool %q has no install command", tool.Name)
		}
	}
}
