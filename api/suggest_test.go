package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"shoplist-api/suggest"
)

type fakeSuggester struct {
	items  []any
	err    error
	prompt string
	called bool
}

func (f *fakeSuggester) Generate(_ context.Context, prompt, _ string) ([]any, error) {
	f.called = true
	f.prompt = prompt
	return f.items, f.err
}

func decodeSuggestions(t *testing.T, body []byte) suggestResponse {
	t.Helper()
	var resp suggestResponse
	if err := sonic.ConfigStd.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode suggestions %q: %v", body, err)
	}
	return resp
}

func TestSuggestReturnsNormalizedItems(t *testing.T) {
	fake := &fakeSuggester{items: []any{
		map[string]any{"label": "  Milk ", "tags": []any{"dairy", 3, ""}, "checked": false},
		map[string]any{"label": strings.Repeat("é", 120)},
		map[string]any{"label": ""},
		"not an object",
		map[string]any{"label": "Bread", "checked": true},
	}}
	store := &recordingStore{data: map[string][]byte{}}
	e := newTestEcho(store, fake)

	rec := do(e, http.MethodPost, "/api/suggest", `{"prompt":" breakfast ","catalog":"milk, bread"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if fake.prompt != "breakfast" {
		t.Fatalf("expected trimmed prompt, got %q", fake.prompt)
	}
	items := decodeSuggestions(t, rec.Body.Bytes()).Items
	if len(items) != 3 {
		t.Fatalf("expected 3 usable items, got %+v", items)
	}
	seen := map[string]bool{}
	for i, it := range items {
		if _, err := uuid.Parse(it.ID); err != nil {
			t.Fatalf("item %d has non uuid id %q", i, it.ID)
		}
		if seen[it.ID] {
			t.Fatalf("duplicate id %q", it.ID)
		}
		seen[it.ID] = true
		if it.Pos != float64(i) || it.UpdatedAt != testNow.UnixMilli() {
			t.Fatalf("item %d has unexpected pos/updated_at: %+v", i, it)
		}
	}
	if items[0].Label != "Milk" || len(items[0].Tags) != 1 || items[0].Tags[0] != "dairy" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if n := utf8.RuneCountInString(items[1].Label); n != maxSuggestedLabel {
		t.Fatalf("expected label truncated to %d runes, got %d", maxSuggestedLabel, n)
	}
	if items[1].Checked || !items[2].Checked {
		t.Fatalf("checked flags not carried over: %+v", items)
	}
	if store.calls != 0 {
		t.Fatalf("suggestions must not touch storage, got %d calls", store.calls)
	}
}

func TestSuggestValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{name: "invalid json", body: `{"prompt":`, wantReason: reasonInvalidJSON},
		{name: "not an object", body: `"milk"`, wantReason: reasonInvalidBody},
		{name: "missing prompt", body: `{}`, wantReason: reasonInvalidBody},
		{name: "blank prompt", body: `{"prompt":"   "}`, wantReason: reasonInvalidBody},
		{name: "prompt not string", body: `{"prompt":5}`, wantReason: reasonInvalidBody},
		{name: "catalog not string", body: `{"prompt":"x","catalog":["a"]}`, wantReason: reasonInvalidBody},
		{name: "prompt too long", body: fmt.Sprintf(`{"prompt":%q}`, strings.Repeat("a", maxPromptRunes+1)), wantReason: reasonInvalidBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSuggester{}
			e := newTestEcho(&recordingStore{}, fake)
			rec := do(e, http.MethodPost, "/api/suggest", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeError(t, rec).Error; got != tt.wantReason {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, got)
			}
			if fake.called {
				t.Fatalf("suggester must not be called for invalid input")
			}
		})
	}
}

func TestSuggestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{name: "timeout", err: suggest.ErrTimeout, wantStatus: http.StatusGatewayTimeout, wantReason: reasonUpstreamTimeout},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout, wantReason: reasonUpstreamTimeout},
		{name: "malformed", err: fmt.Errorf("%w: missing items", suggest.ErrMalformed), wantStatus: http.StatusBadGateway, wantReason: reasonUpstreamBadReply},
		{name: "upstream", err: fmt.Errorf("%w: status 401", suggest.ErrUpstream), wantStatus: http.StatusBadGateway, wantReason: reasonUpstreamError},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusBadGateway, wantReason: reasonUpstreamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{}
			e := newTestEcho(store, &fakeSuggester{err: tt.err})
			rec := do(e, http.MethodPost, "/api/suggest", `{"prompt":"dinner"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeError(t, rec).Error; got != tt.wantReason {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, got)
			}
			if store.calls != 0 {
				t.Fatalf("failed suggestion touched storage")
			}
		})
	}
}

func TestSuggestDisabled(t *testing.T) {
	e := newTestEcho(&recordingStore{}, nil)
	rec := do(e, http.MethodPost, "/api/suggest", `{"prompt":"dinner"}`)
	if rec.Code != http.StatusServiceUnavailable || decodeError(t, rec).Error != reasonSuggestDisabled {
		t.Fatalf("expected 503 suggestions_disabled, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateRunes("ok", 5); got != "ok" {
		t.Fatalf("short strings must be untouched, got %q", got)
	}
}
