package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

func TestListEntityRoundTrip(t *testing.T) {
	blob := []byte(`{"title":"L","items":[{"id":"a"}],"version":3,"updated_at":9}`)

	payload, err := encodeListEntity("abcdefghijklmnop", blob)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("entity is not json: %v", err)
	}
	if raw["PartitionKey"] != listPartition || raw["RowKey"] != "abcdefghijklmnop" {
		t.Fatalf("unexpected keys: %v", raw)
	}

	got, err := decodeListEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("unexpected document: %s", got)
	}
}

func TestDecodeListEntityFromService(t *testing.T) {
	data := []byte(`{"odata.etag":"W/\"x\"","PartitionKey":"list","RowKey":"abcdefghijklmnop","Document":"{\"title\":\"L\"}"}`)
	got, err := decodeListEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != `{"title":"L"}` {
		t.Fatalf("unexpected document: %s", got)
	}
}

func utf16Units(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func TestSplitDocumentRespectsUTF16PropertyLimit(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantChunks int
	}{
		{name: "empty", doc: "", wantChunks: 1},
		{name: "ascii at limit", doc: strings.Repeat("a", maxPropertyUTF16Units), wantChunks: 1},
		{name: "ascii over limit", doc: strings.Repeat("a", maxPropertyUTF16Units+1), wantChunks: 2},
		{name: "ascii 40 KiB", doc: strings.Repeat("a", 40*1024), wantChunks: 2},
		{name: "cjk fits one property", doc: strings.Repeat("牛", 25000), wantChunks: 1},
		{name: "cjk over limit", doc: strings.Repeat("牛", maxPropertyUTF16Units+1), wantChunks: 2},
		{name: "surrogate pairs", doc: strings.Repeat("🥚", maxPropertyUTF16Units/2+1), wantChunks: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitDocument(tt.doc)
			if len(chunks) != tt.wantChunks {
				t.Fatalf("expected %d chunks, got %d", tt.wantChunks, len(chunks))
			}
			if strings.Join(chunks, "") != tt.doc {
				t.Fatalf("chunks do not reassemble the document")
			}
			for i, chunk := range chunks {
				if units := utf16Units(chunk); units > maxPropertyUTF16Units {
					t.Fatalf("chunk %d holds %d UTF-16 units", i, units)
				}
				if !utf8.ValidString(chunk) {
					t.Fatalf("chunk %d split a rune", i)
				}
			}
		})
	}
}

func TestListEntityChunkedRoundTrip(t *testing.T) {
	blob := []byte(`{"title":"` + strings.Repeat("牛a", 30000) + `"}`)

	payload, err := encodeListEntity("abcdefghijklmnop", blob)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("entity is not json: %v", err)
	}
	if raw[documentChunkCountProp] != float64(2) {
		t.Fatalf("expected 2 chunks, got %v", raw[documentChunkCountProp])
	}
	for _, prop := range []string{"Document0", "Document1"} {
		s, ok := raw[prop].(string)
		if !ok || 2*utf16Units(s) > 64*1024 {
			t.Fatalf("property %s missing or over 64 KiB of UTF-16", prop)
		}
	}

	got, err := decodeListEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("chunked document did not round trip")
	}
}

func TestEncodeListEntityTooLarge(t *testing.T) {
	fits := bytes.Repeat([]byte("x"), maxDocumentChunks*maxPropertyUTF16Units)
	if _, err := encodeListEntity("abcdefghijklmnop", fits); err != nil {
		t.Fatalf("document at the entity limit rejected: %v", err)
	}
	_, err := encodeListEntity("abcdefghijklmnop", append(fits, 'x'))
	if !errors.Is(err, ErrDocumentTooLarge) {
		t.Fatalf("expected ErrDocumentTooLarge, got %v", err)
	}
}

func TestDecodeListEntityMissingDocument(t *testing.T) {
	if _, err := decodeListEntity([]byte(`{"PartitionKey":"list","RowKey":"abcdefghijklmnop"}`)); !errors.Is(err, errMissingDocument) {
		t.Fatalf("expected errMissingDocument, got %v", err)
	}
	if _, err := decodeListEntity([]byte(`{"DocumentChunks":2,"Document0":"{"}`)); !errors.Is(err, errMissingDocument) {
		t.Fatalf("expected errMissingDocument for a missing chunk, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"}
	if !isNotFound(fmt.Errorf("wrapped: %w", notFound)) {
		t.Fatalf("expected wrapped 404 to be not found")
	}
	if isNotFound(&azcore.ResponseError{StatusCode: http.StatusConflict}) {
		t.Fatalf("409 must not be treated as not found")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatalf("plain errors must not be treated as not found")
	}
}
