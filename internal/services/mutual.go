package services

import "github.com/google/uuid"

// Mutuals returns the members of candidates that also appear in
// referenceFollowing, in candidate order and without duplicates. A nil or
// empty reference yields an empty, non-nil slice.
func Mutuals(candidates, referenceFollowing []uuid.UUID) []uuid.UUID {
	result := []uuid.UUID{}
	if len(candidates) == 0 || len(referenceFollowing) == 0 {
		return result
	}

	reference := make(map[uuid.UUID]struct{}, len(referenceFollowing))
	for _, id := range referenceFollowing {
		reference[id] = struct{}{}
	}

	seen := make(map[uuid.UUID]struct{}, len(candidates))
	for _, id := range candidates {
		if _, ok := reference[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
