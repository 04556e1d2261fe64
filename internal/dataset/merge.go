package dataset

import (
	"sort"

	"github.com/i474232898/offshore-forecast/internal/grid"
)

// Merge combines slice groups given in resolver order (primary run first) into
// one strictly time-ordered sequence. When two slices share a timestamp the one
// from the earlier group wins, so the primary run overrides the fallback run.
func Merge(groups ...[]*grid.Slice) []*grid.Slice {
	type ranked struct {
		slice *grid.Slice
		group int
	}

	var all []ranked
	for g, slices := range groups {
		for _, s := range slices {
			if s != nil {
				all = append(all, ranked{slice: s, group: g})
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		ti, tj := all[i].slice.Time, all[j].slice.Time
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return all[i].group < all[j].group
	})

	out := make([]*grid.Slice, 0, len(all))
	for _, r := range all {
		if n := len(out); n > 0 && out[n-1].Time.Equal(r.slice.Time) {
			continue
		}
		out = append(out, r.slice)
	}
	return out
}
