package territory

import "github.com/pyropy/territory/core/model"

func (s *Service) CurrentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// Epoch identifies the current version sequence. It changes whenever the version is reset.
func (s *Service) Epoch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.epoch
}

// DeltaSince returns every change after sinceVersion, or asks for a snapshot
// when the range is unknown or already truncated from the log.
func (s *Service) DeltaSince(sinceVersion int64) model.DeltaResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := model.DeltaResult{
		Version: s.version,
		Epoch:   s.epoch,
		Changes: []model.Change{},
	}

	if sinceVersion < 0 || uint64(sinceVersion) > s.version {
		result.RequiresSnapshot = true
		return result
	}

	if s.changes.empty() {
		return result
	}

	since := uint64(sinceVersion)
	if since+1 < s.changes.oldest() {
		result.RequiresSnapshot = true
		return result
	}

	result.Changes = s.changes.since(since)
	return result
}
