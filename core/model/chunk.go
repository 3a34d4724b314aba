package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrMalformedChunkKey = errors.New("malformed chunk key")
)

// ChunkPos identifies a single claimable cell of a world.
type ChunkPos struct {
	World string
	X     int32
	Z     int32
}

func NewChunkPos(world string, x, z int32) ChunkPos {
	return ChunkPos{World: world, X: x, Z: z}
}

// Key encodes the position the way nation records store it: world:x:z.
func (p ChunkPos) Key() string {
	return p.World + ":" + strconv.FormatInt(int64(p.X), 10) + ":" + strconv.FormatInt(int64(p.Z), 10)
}

func (p ChunkPos) String() string {
	return p.Key()
}

// Less orders positions by world, then x, then z.
func (p ChunkPos) Less(o ChunkPos) bool {
	if p.World != o.World {
		return p.World < o.World
	}
	if p.X != o.X {
		return p.X < o.X
	}

	return p.Z < o.Z
}

// ParseChunkKey decodes a world:x:z key.
func ParseChunkKey(key string) (ChunkPos, error) {
	if strings.TrimSpace(key) == "" {
		return ChunkPos{}, ErrMalformedChunkKey
	}

	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return ChunkPos{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedChunkKey, key, len(parts))
	}

	if strings.TrimSpace(parts[0]) == "" {
		return ChunkPos{}, fmt.Errorf("%w: %q has no world", ErrMalformedChunkKey, key)
	}

	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return ChunkPos{}, fmt.Errorf("%w: %q: %v", ErrMalformedChunkKey, key, err)
	}

	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return ChunkPos{}, fmt.Errorf("%w: %q: %v", ErrMalformedChunkKey, key, err)
	}

	return ChunkPos{World: parts[0], X: int32(x), Z: int32(z)}, nil
}

func SortChunkPos(ps []ChunkPos) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
}

// Cell is one owned chunk, the unit of snapshots and exports.
type Cell struct {
	World    string `json:"world"`
	X        int32  `json:"x"`
	Z        int32  `json:"z"`
	NationID string `json:"nationId"`
}

func (c Cell) Pos() ChunkPos {
	return ChunkPos{World: c.World, X: c.X, Z: c.Z}
}

func SortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].Pos().Less(cells[j].Pos()) })
}
