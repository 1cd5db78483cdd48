package models

// Words is the flattened result of one listing pass over all word-sets.
type Words []WordOfSet

// CreatedAfter keeps the words whose CreatedAt sorts after watermark.
//
// The comparison is lexicographic. It matches chronological order only while every
// timestamp shares one fixed-width, zero-padded format with the same offset.
// An empty watermark keeps everything.
func (w Words) CreatedAfter(watermark string) Words {
	out := make(Words, 0, len(w))
	for _, item := range w {
		if watermark == "" || item.Word.CreatedAt > watermark {
			out = append(out, item)
		}
	}
	return out
}

// LastCreated returns the greatest CreatedAt of the set, or false when the set is empty.
func (w Words) LastCreated() (string, bool) {
	if len(w) == 0 {
		return "", false
	}
	last := w[0].Word.CreatedAt
	for _, item := range w[1:] {
		if item.Word.CreatedAt > last {
			last = item.Word.CreatedAt
		}
	}
	return last, true
}

// MeaningIDs returns the distinct meaning ids in listing order.
func (w Words) MeaningIDs() []uint64 {
	seen := make(map[uint64]struct{}, len(w))
	ids := make([]uint64, 0, len(w))
	for _, item := range w {
		if _, ok := seen[item.Word.MeaningID]; ok {
			continue
		}
		seen[item.Word.MeaningID] = struct{}{}
		ids = append(ids, item.Word.MeaningID)
	}
	return ids
}
