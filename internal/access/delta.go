// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package access

// Delta compares the ids currently held with the ids requested.
//
// toInsert holds the requested ids not currently held. toDelete holds the
// current ids not requested. Both keep first-occurrence order and contain no
// duplicates. Grant uses toInsert; Replace semantics are toInsert plus
// toDelete.
func Delta[T comparable](current, requested []T) (toInsert, toDelete []T) {
	held := make(map[T]struct{}, len(current))
	for _, id := range current {
		held[id] = struct{}{}
	}
	want := make(map[T]struct{}, len(requested))
	for _, id := range requested {
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}
		if _, ok := held[id]; !ok {
			toInsert = append(toInsert, id)
		}
	}

	seen := make(map[T]struct{}, len(current))
	for _, id := range current {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := want[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	return toInsert, toDelete
}

// Dedup returns ids without duplicates, keeping first-occurrence order.
func Dedup[T comparable](ids []T) []T {
	out, _ := Delta(nil, ids)
	return out
}
