package nation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyropy/territory/core/model"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nations.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFixture(t, `
nations:
  - id: alpha
    name: Alpha
    claimed_chunks: ["world:0:0", "world:0:1"]
    capital_chunk: "world:0:0"
  - id: bravo
`)

	nations, err := LoadYAML(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(nations) != 2 {
		t.Fatalf("got %d nations", len(nations))
	}
	if nations[0].Name != "Alpha" || len(nations[0].ClaimedChunks) != 2 || nations[0].CapitalChunk != "world:0:0" {
		t.Fatalf("alpha = %+v", nations[0])
	}
	if nations[1].HasClaims() {
		t.Fatalf("bravo should have no claims")
	}
}

func TestLoadYAMLRejectsMissingID(t *testing.T) {
	path := writeFixture(t, `
nations:
  - name: Nameless
`)

	if _, err := LoadYAML(path); !errors.Is(err, ErrEmptyNationID) {
		t.Fatalf("err = %v, want ErrEmptyNationID", err)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := Import(ctx, s, []model.Nation{{ID: "a"}, {ID: "b"}})
	if err != nil || n != 2 {
		t.Fatalf("import = %d, %v", n, err)
	}

	n, err = Import(ctx, s, []model.Nation{{ID: "c"}, {ID: ""}, {ID: "d"}})
	if !errors.Is(err, ErrEmptyNationID) || n != 1 {
		t.Fatalf("import = %d, %v", n, err)
	}
	if ok, _ := s.Exists(ctx, "d"); ok {
		t.Fatalf("import continued past a failure")
	}
}
