package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pyropy/territory/core/model"
)

var testCells = []model.Cell{
	{World: "nether", X: -4, Z: 9, NationID: "b"},
	{World: "world", X: 0, Z: 0, NationID: "a"},
	{World: "world", X: 2147483647, Z: -2147483648, NationID: "a"},
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		path := filepath.Join(t.TempDir(), "territories.json")
		store := &FileStore{Path: path, Compress: compress}

		if err := store.Save(context.Background(), testCells); err != nil {
			t.Fatalf("compress=%v: save: %v", compress, err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if got := bytes.HasPrefix(raw, zstdMagic); got != compress {
			t.Fatalf("compress=%v: zstd frame present = %v", compress, got)
		}

		cells, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("compress=%v: load: %v", compress, err)
		}
		if !reflect.DeepEqual(cells, testCells) {
			t.Fatalf("compress=%v: got %+v", compress, cells)
		}
	}
}

func TestFileStoreReadsEitherEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territories.json")

	if err := (&FileStore{Path: path}).Save(context.Background(), testCells); err != nil {
		t.Fatal(err)
	}

	cells, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("compressed store failed to read plain file: %v", err)
	}
	if len(cells) != len(testCells) {
		t.Fatalf("got %d cells", len(cells))
	}
}

func TestFileStoreEmptySnapshot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data", "territories.json.zst"))

	if err := store.Save(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	cells, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 0 {
		t.Fatalf("got %+v", cells)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json.zst"))

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreRejectsLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territories.json")
	legacy := `[{"world":"world","x":0,"z":0,"nationId":"a"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := (&FileStore{Path: path}).Load(context.Background())
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestFileStoreRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territories.json")
	doc := `{"schema_version": 2, "count": 0, "checksum": 0, "cells": []}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := (&FileStore{Path: path}).Load(context.Background())
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestFileStoreDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territories.json")
	store := &FileStore{Path: path}
	if err := store.Save(context.Background(), testCells); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw = bytes.Replace(raw, []byte(`"nationId":"b"`), []byte(`"nationId":"c"`), 1)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestFileStoreRejectsOutOfRangeCoordinates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territories.json")
	doc := `{"schema_version": 1, "count": 1, "checksum": 0, "cells": [{"world":"w","x":2147483648,"z":0,"nationId":"a"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := (&FileStore{Path: path}).Load(context.Background()); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}

	if err := store.Save(context.Background(), testCells); err != nil {
		t.Fatal(err)
	}

	cells, _ := store.Load(context.Background())
	cells[0].NationID = "mutated"

	again, _ := store.Load(context.Background())
	if again[0].NationID != "b" {
		t.Fatalf("store shares its slice with callers")
	}
	if store.Saves() != 1 {
		t.Fatalf("saves = %d", store.Saves())
	}
}

func TestFileStoreRoundTripsUnusualStrings(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "territories.json.zst"))
	cells := []model.Cell{
		{World: "w\xff", X: 1, Z: 2, NationID: "a"},
		{World: "world", X: 0, Z: 0, NationID: "<b&c>"},
	}

	if err := store.Save(context.Background(), cells); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].World != "w\uFFFD" || got[1].NationID != "<b&c>" {
		t.Fatalf("got %+v", got)
	}
}
