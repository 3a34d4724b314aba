package nation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"
	"github.com/pyropy/territory/core/model"
)

const nationsPrefix = "/nations"

var (
	ErrNationNotFound = errors.New("nation not found")
	ErrEmptyNationID  = errors.New("empty nation id")
)

// LevelDBStore persists nation records as JSON values keyed by /nations/<id>.
type LevelDBStore struct {
	Nations *dslvl.Datastore
}

func NewLevelDBStore(dsPath string) (*LevelDBStore, error) {
	p := fmt.Sprintf("%s/nations", dsPath)
	store, err := dslvl.NewDatastore(p, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBStore{
		Nations: store,
	}, nil
}

// nationKey encodes the id so it always stays a single segment under /nations.
func nationKey(id string) ds.Key {
	return ds.NewKey(nationsPrefix).ChildString(base64.RawURLEncoding.EncodeToString([]byte(id)))
}

func (n *LevelDBStore) Get(ctx context.Context, id string) (*model.Nation, error) {
	b, err := n.Nations.Get(ctx, nationKey(id))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, ErrNationNotFound
	}
	if err != nil {
		return nil, err
	}

	var nation model.Nation
	err = json.Unmarshal(b, &nation)
	if err != nil {
		return nil, err
	}

	return &nation, nil
}

func (n *LevelDBStore) Exists(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}

	return n.Nations.Has(ctx, nationKey(id))
}

func (n *LevelDBStore) Save(ctx context.Context, nation model.Nation) error {
	if strings.TrimSpace(nation.ID) == "" {
		return ErrEmptyNationID
	}

	b, err := json.Marshal(nation)
	if err != nil {
		return err
	}

	return n.Nations.Put(ctx, nationKey(nation.ID), b)
}

func (n *LevelDBStore) Delete(ctx context.Context, id string) error {
	return n.Nations.Delete(ctx, nationKey(id))
}

// All returns every nation record ordered by id.
func (n *LevelDBStore) All(ctx context.Context) ([]model.Nation, error) {
	q := dsq.Query{Prefix: nationsPrefix}
	nations := make([]model.Nation, 0)

	res, err := n.Nations.Query(ctx, q)
	if err != nil {
		return nations, err
	}
	defer res.Close()

	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}
		if r.Error != nil {
			return nations, r.Error
		}

		var nation model.Nation
		err = json.Unmarshal(r.Value, &nation)
		if err != nil {
			return nations, err
		}
		nations = append(nations, nation)
	}

	sort.Slice(nations, func(i, j int) bool { return nations[i].ID < nations[j].ID })
	return nations, nil
}

func (n *LevelDBStore) Close() error {
	return n.Nations.Close()
}
