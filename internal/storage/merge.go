package storage

import (
	"fmt"
	"time"

	"launchpad-index/internal/domain"
)

// Merge computes the record that results from applying patch to existing
// under policy. existing may be nil. The returned record is a fresh copy.
//
// UpdatedAt only moves when content changes, so re-applying a patch is a no-op.
// Backends that evaluate merges in process share this function.
func Merge(existing *domain.TokenRecord, patch *domain.RecordPatch, policy MergePolicy, now time.Time) (*domain.TokenRecord, error) {
	if existing == nil {
		if policy == MergeMarketOnly {
			return nil, ErrNotFound
		}
		return patch.NewRecord(now), nil
	}

	merged := existing.Clone()
	switch policy {
	case MergeListing:
		patch.ApplyListing(merged)
	case MergeMarketOnly:
		patch.ApplyMarket(merged)
	default:
		return nil, fmt.Errorf("%w: merge policy %d", ErrInvalidInput, policy)
	}

	if merged.ContentEqual(existing) {
		return merged, nil
	}
	merged.UpdatedAt = now
	return merged, nil
}

// ValidatePatch normalizes the patch address in place.
func ValidatePatch(patch *domain.RecordPatch) error {
	if patch == nil {
		return ErrInvalidInput
	}
	addr, err := domain.NormalizeAddress(patch.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	patch.Address = addr
	return nil
}
