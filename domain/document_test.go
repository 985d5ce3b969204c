package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument("", 42)
	if doc.Title != DefaultTitle || doc.Version != 0 || doc.UpdatedAt != 42 {
		t.Fatalf("unexpected default document: %#v", doc)
	}
	if doc.Items == nil || len(doc.Items) != 0 {
		t.Fatalf("expected empty items, got %#v", doc.Items)
	}
}

func TestDecodeStoredRoundTrip(t *testing.T) {
	doc := Document{
		Title: "Weekend",
		Items: []Item{
			{ID: "a", Label: "Milk", Tags: []string{"dairy"}, Pos: 0, UpdatedAt: 10},
			{ID: "b", Label: "Bread", Checked: true, Tags: []string{}, Pos: 1, UpdatedAt: 20},
		},
		Version:   4,
		UpdatedAt: 30,
	}
	blob, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, skipped, err := DecodeStored(blob, DefaultTitle, 999)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped items: %v", skipped)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, doc)
	}
}

func TestDecodeStoredSkipsCorruptItems(t *testing.T) {
	blob := []byte(`{"title":"L","version":2,"updated_at":5,"items":[
		{"id":"a","label":"Milk","checked":false,"pos":0,"updated_at":1},
		{"label":"no id","checked":false},
		"garbage",
		{"id":"c","label":"Eggs","checked":"yes"},
		{"id":"d","label":"Tea","checked":true,"pos":4,"updated_at":2}
	]}`)

	doc, skipped, err := DecodeStored(blob, DefaultTitle, 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Items) != 2 || doc.Items[0].ID != "a" || doc.Items[1].ID != "d" {
		t.Fatalf("unexpected surviving items: %#v", doc.Items)
	}
	if len(skipped) != 3 {
		t.Fatalf("expected 3 skipped items, got %d", len(skipped))
	}
	kinds := []ValidationKind{skipped[0].Kind, skipped[1].Kind, skipped[2].Kind}
	want := []ValidationKind{KindMissingID, KindNotAnObject, KindMissingChecked}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("unexpected skip kinds: %v", kinds)
	}
	if doc.Version != 2 {
		t.Fatalf("expected version 2, got %d", doc.Version)
	}
}

func TestDecodeStoredFallbacks(t *testing.T) {
	doc, _, err := DecodeStored([]byte(`{"title":7,"version":-3,"items":"nope"}`), "Groceries", 77)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "Groceries" || doc.Version != 0 || doc.UpdatedAt != 77 || len(doc.Items) != 0 {
		t.Fatalf("unexpected fallback document: %#v", doc)
	}
}

func TestDecodeStoredCorrupt(t *testing.T) {
	for _, blob := range []string{`{`, `[]`, `"text"`, `null`} {
		_, _, err := DecodeStored([]byte(blob), DefaultTitle, 1)
		if !errors.Is(err, ErrCorruptDocument) {
			t.Fatalf("blob %q: expected ErrCorruptDocument, got %v", blob, err)
		}
	}
}

func TestNextRevision(t *testing.T) {
	existing := Document{Title: "old", Version: 6, UpdatedAt: 1}
	next := NextRevision(existing, "new", nil, 50)
	if next.Version != 7 || next.Title != "new" || next.UpdatedAt != 50 {
		t.Fatalf("unexpected revision: %#v", next)
	}
	if next.Items == nil {
		t.Fatalf("expected non-nil items")
	}

	fresh := NextRevision(NewDocument("", 1), "L", []Item{}, 2)
	if fresh.Version != 1 {
		t.Fatalf("expected first write to produce version 1, got %d", fresh.Version)
	}
}
