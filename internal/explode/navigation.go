package explode

import "github.com/Xunop/bookworm/internal/model"

// FindNextItem returns the item after items[i], false at the end.
func FindNextItem[T any](items []T, i int) (T, bool) {
	var zero T
	if i < 0 || i+1 >= len(items) {
		return zero, false
	}
	return items[i+1], true
}

// FindPreviousItem returns the item before items[i], false at the start.
func FindPreviousItem[T any](items []T, i int) (T, bool) {
	var zero T
	if i <= 0 || i >= len(items) {
		return zero, false
	}
	return items[i-1], true
}

// NextChapter returns the chapter after current in reading order, nil when
// current is the last chapter or not among records.
func NextChapter(records []*model.ContentRecord, current *model.ContentRecord) *model.ContentRecord {
	chapters := chaptersOf(records)
	next, ok := FindNextItem(chapters, indexOf(chapters, current))
	if !ok {
		return nil
	}
	return next
}

func PreviousChapter(records []*model.ContentRecord, current *model.ContentRecord) *model.ContentRecord {
	chapters := chaptersOf(records)
	prev, ok := FindPreviousItem(chapters, indexOf(chapters, current))
	if !ok {
		return nil
	}
	return prev
}

// chaptersOf keeps the chapter records, which the store returns in spine
// order.
func chaptersOf(records []*model.ContentRecord) []*model.ContentRecord {
	var chapters []*model.ContentRecord
	for _, r := range records {
		if r.Kind == model.ContentChapter {
			chapters = append(chapters, r)
		}
	}
	return chapters
}

func indexOf(chapters []*model.ContentRecord, current *model.ContentRecord) int {
	if current == nil {
		return -1
	}
	for i, r := range chapters {
		if r == current || (current.ID != 0 && r.ID == current.ID) {
			return i
		}
	}
	return -1
}
