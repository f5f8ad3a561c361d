package query

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSynonyms_Embedded(t *testing.T) {
	t.Setenv("SYNONYMS_CONFIG_PATH", "")

	syn := LoadSynonyms()
	if syn.Len() == 0 {
		t.Fatal("embedded synonym table should not be empty")
	}

	alt, ok := syn.Lookup("re201")
	if !ok || alt != "re-201" {
		t.Errorf("Lookup(re201) = %q, %v; want re-201, true", alt, ok)
	}

	if _, ok := syn.Lookup("no such phrase"); ok {
		t.Error("Lookup of unknown phrase should report absence")
	}
}

func TestLoadSynonyms_ExternalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.json")
	if err := os.WriteFile(path, []byte(`{"tele": "fender telecaster"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNONYMS_CONFIG_PATH", path)

	syn := LoadSynonyms()
	if alt, ok := syn.Lookup("tele"); !ok || alt != "fender telecaster" {
		t.Errorf("Lookup(tele) = %q, %v; want fender telecaster, true", alt, ok)
	}
	// External file replaces the embedded table entirely
	if _, ok := syn.Lookup("re201"); ok {
		t.Error("embedded entries should not leak into an external table")
	}
}

func TestLoadSynonyms_BadExternalFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNONYMS_CONFIG_PATH", path)

	syn := LoadSynonyms()
	if _, ok := syn.Lookup("re201"); !ok {
		t.Error("unparseable external file should fall back to the embedded table")
	}
}
