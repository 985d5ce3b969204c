package domain

// NextRevision stamps merged items as the successor of existing. The version
// always advances by one, even when nothing changed; a missing or corrupt
// predecessor counts as version 0.
func NextRevision(existing Document, title string, items []Item, now int64) Document {
	if items == nil {
		items = []Item{}
	}
	version := existing.Version
	if version < 0 {
		version = 0
	}
	return Document{
		Title:     title,
		Items:     items,
		Version:   version + 1,
		UpdatedAt: now,
	}
}
