package model

// Nation is the slice of an externally stored nation record the territory engine reads and repairs.
type Nation struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name,omitempty" yaml:"name"`
	ClaimedChunks []string `json:"claimedChunks" yaml:"claimed_chunks"`
	CapitalChunk  string   `json:"capitalChunk,omitempty" yaml:"capital_chunk"`
}

func (n *Nation) HasClaims() bool {
	return len(n.ClaimedChunks) > 0
}
