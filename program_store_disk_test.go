// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProgramStoreDisk(t *testing.T) {
	dir, err := ioutil.TempDir("", "kawminer")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	gen := new(recordingGenerator)
	store, err := NewProgramStoreDisk(filepath.Join(dir, "programs.db"), gen, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	sizes := DatasetSizes{1 << 20}

	// miss: compiled through the wrapped generator and stored
	code, entry, err := store.Generate(10, 8, 6, sizes, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("Expected 1 inner generation, got %d", len(gen.calls))
	}
	if !strings.HasPrefix(entry, "kawpow_search_") {
		t.Fatalf("Unexpected entry point %q", entry)
	}

	// hit: served from disk without touching the generator
	code2, entry2, err := store.Generate(10, 8, 6, sizes, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 1 {
		t.Fatal("Stored program regenerated")
	}
	if !bytes.Equal(code, code2) || entry != entry2 {
		t.Fatal("Stored program differs from original")
	}

	// a different architecture is a different artifact
	if _, _, err := store.Generate(10, 7, 5, sizes, false); err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 2 {
		t.Fatal("Architecture not part of the store key")
	}

	// prefetch-only generations are stored, making the next load a hit
	if _, _, err := store.Generate(11, 8, 6, sizes, true); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Generate(11, 8, 6, sizes, false); err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 3 {
		t.Fatal("Prefetched program regenerated on load")
	}
}

func TestProgramStoreDiskCompress(t *testing.T) {
	dir, err := ioutil.TempDir("", "kawminer")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	gen := new(recordingGenerator)
	store, err := NewProgramStoreDisk(filepath.Join(dir, "programs.db"), gen, false, true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	code, entry, err := store.Generate(42, 8, 6, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	code2, entry2, err := store.Generate(42, 8, 6, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 1 {
		t.Fatal("Compressed program regenerated")
	}
	if !bytes.Equal(code, code2) || entry != entry2 {
		t.Fatal("Compressed roundtrip corrupted the program")
	}
}
