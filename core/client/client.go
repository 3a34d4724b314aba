package client

import (
	"net/rpc"

	"github.com/google/uuid"
	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/rpc/territory"
)

// Client talks to a territoryd instance over net/rpc.
type Client struct {
	RpcClient *rpc.Client
	// Name identifies the caller in server logs.
	Name      string
}

func NewClient(addr string) (*Client, error) {
	rpcClient, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Client{
		RpcClient: rpcClient,
		Name:      "client",
	}, nil
}

func (c *Client) Close() error {
	return c.RpcClient.Close()
}

func (c *Client) Claim(nationID, world string, x, z int32) (uint64, error) {
	var reply territory.ClaimReply
	args := &territory.ClaimArgs{NationID: nationID, World: world, X: x, Z: z}

	err := c.RpcClient.Call("TerritoryAPI.Claim", args, &reply)
	if err != nil {
		return 0, err
	}

	return reply.Version, nil
}

func (c *Client) Unclaim(nationID, world string, x, z int32) (uint64, error) {
	var reply territory.ClaimReply
	args := &territory.ClaimArgs{NationID: nationID, World: world, X: x, Z: z}

	err := c.RpcClient.Call("TerritoryAPI.Unclaim", args, &reply)
	if err != nil {
		return 0, err
	}

	return reply.Version, nil
}

func (c *Client) NationAt(world string, x, z int32) (string, bool, error) {
	var reply territory.NationAtReply
	args := &territory.NationAtArgs{World: world, X: x, Z: z}

	err := c.RpcClient.Call("TerritoryAPI.NationAt", args, &reply)
	if err != nil {
		return "", false, err
	}

	return reply.NationID, reply.Claimed, nil
}

func (c *Client) ClaimsOf(nationID string) ([]model.ChunkPos, error) {
	var reply territory.ClaimsOfReply
	err := c.RpcClient.Call("TerritoryAPI.ClaimsOf", &territory.ClaimsOfArgs{NationID: nationID}, &reply)
	if err != nil {
		return nil, err
	}

	return reply.Chunks, nil
}

func (c *Client) WorldClaims(world string) (map[string][]model.ChunkPos, error) {
	var reply territory.WorldClaimsReply
	err := c.RpcClient.Call("TerritoryAPI.WorldClaims", &territory.WorldClaimsArgs{World: world}, &reply)
	if err != nil {
		return nil, err
	}

	return reply.Claims, nil
}

// Snapshot returns every owned cell, or only those of world when it is not empty.
func (c *Client) Snapshot(world string) (*model.Snapshot, error) {
	var reply territory.AllCellsReply
	err := c.RpcClient.Call("TerritoryAPI.AllCells", &territory.AllCellsArgs{World: world}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply.Snapshot, nil
}

func (c *Client) Version() (*territory.VersionReply, error) {
	var reply territory.VersionReply
	err := c.RpcClient.Call("TerritoryAPI.Version", &territory.VersionArgs{Caller: c.Name}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (c *Client) DeltaSince(sinceVersion int64) (*model.DeltaResult, error) {
	var reply territory.DeltaSinceReply
	err := c.RpcClient.Call("TerritoryAPI.DeltaSince", &territory.DeltaSinceArgs{SinceVersion: sinceVersion}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply.Delta, nil
}

func (c *Client) Rebuild() (*territory.RebuildReply, error) {
	var reply territory.RebuildReply
	err := c.RpcClient.Call("TerritoryAPI.Rebuild", &territory.RebuildArgs{Caller: c.Name}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (c *Client) Poll(clientID uuid.UUID) (*territory.PollReply, error) {
	var reply territory.PollReply
	err := c.RpcClient.Call("TerritoryAPI.Poll", &territory.PollArgs{ClientID: clientID}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (c *Client) History(args territory.HistoryArgs) ([]territory.HistoryEntry, error) {
	var reply territory.HistoryReply
	err := c.RpcClient.Call("TerritoryAPI.History", &args, &reply)
	if err != nil {
		return nil, err
	}

	return reply.Entries, nil
}
