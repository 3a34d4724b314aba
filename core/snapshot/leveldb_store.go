package snapshot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"
	"github.com/pyropy/territory/core/constants"
	"github.com/pyropy/territory/core/model"
)

const cellsPrefix = "/cells"

var schemaKey = ds.NewKey("/meta/schema_version")

// LevelDBStore keeps one record per owned cell under /cells.
type LevelDBStore struct {
	Cells *dslvl.Datastore
}

func NewLevelDBStore(dsPath string) (*LevelDBStore, error) {
	p := fmt.Sprintf("%s/territories", dsPath)
	store, err := dslvl.NewDatastore(p, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBStore{
		Cells: store,
	}, nil
}

// cellKey encodes the chunk key so world names cannot add or clean path segments.
func cellKey(pos model.ChunkPos) ds.Key {
	return ds.NewKey(cellsPrefix).ChildString(base64.RawURLEncoding.EncodeToString([]byte(pos.Key())))
}

func (l *LevelDBStore) Load(ctx context.Context) ([]model.Cell, error) {
	b, err := l.Cells.Get(ctx, schemaKey)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	version, err := strconv.Atoi(string(b))
	if err != nil || version != constants.SNAPSHOT_SCHEMA_VERSION {
		return nil, fmt.Errorf("%w: got %q", ErrSchemaMismatch, string(b))
	}

	res, err := l.Cells.Query(ctx, dsq.Query{Prefix: cellsPrefix})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	cells := make([]model.Cell, 0)
	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}
		if r.Error != nil {
			return nil, r.Error
		}

		var cell model.Cell
		if err := json.Unmarshal(r.Value, &cell); err != nil {
			return nil, fmt.Errorf("cell %s: %w", r.Key, err)
		}
		cells = append(cells, cell)
	}

	model.SortCells(cells)
	return cells, nil
}

// Save replaces every stored cell in a single batch.
func (l *LevelDBStore) Save(ctx context.Context, cells []model.Cell) error {
	res, err := l.Cells.Query(ctx, dsq.Query{Prefix: cellsPrefix, KeysOnly: true})
	if err != nil {
		return err
	}

	existing, err := res.Rest()
	if err != nil {
		return err
	}

	batch, err := l.Cells.Batch(ctx)
	if err != nil {
		return err
	}

	keep := make(map[ds.Key]struct{}, len(cells))
	for _, c := range cells {
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}

		k := cellKey(c.Pos())
		keep[k] = struct{}{}
		if err := batch.Put(ctx, k, b); err != nil {
			return err
		}
	}

	for _, e := range existing {
		k := ds.NewKey(e.Key)
		if _, ok := keep[k]; ok {
			continue
		}
		if err := batch.Delete(ctx, k); err != nil {
			return err
		}
	}

	if err := batch.Put(ctx, schemaKey, []byte(strconv.Itoa(constants.SNAPSHOT_SCHEMA_VERSION))); err != nil {
		return err
	}

	return batch.Commit(ctx)
}

func (l *LevelDBStore) Close() error {
	return l.Cells.Close()
}
