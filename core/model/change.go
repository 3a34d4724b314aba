package model

type Op string

const (
	OpClaim   Op = "claim"
	OpUnclaim Op = "unclaim"
)

// Change is one committed ownership mutation.
type Change struct {
	Version  uint64 `json:"version"`
	Op       Op     `json:"op"`
	World    string `json:"world"`
	X        int32  `json:"x"`
	Z        int32  `json:"z"`
	NationID string `json:"nationId"`
}

func (c Change) Pos() ChunkPos {
	return ChunkPos{World: c.World, X: c.X, Z: c.Z}
}

// DeltaResult answers "what changed since version V".
// When RequiresSnapshot is set Changes is empty and the caller must re-fetch every cell.
type DeltaResult struct {
	RequiresSnapshot bool     `json:"requiresSnapshot"`
	Version          uint64   `json:"version"`
	Epoch            string   `json:"epoch"`
	Changes          []Change `json:"changes"`
}

// Snapshot is the full ownership state at one version.
type Snapshot struct {
	Version uint64 `json:"version"`
	Epoch   string `json:"epoch"`
	Cells   []Cell `json:"cells"`
}
