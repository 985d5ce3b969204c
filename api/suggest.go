package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"shoplist-api/domain"
	"shoplist-api/suggest"
)

// postSuggest returns AI generated candidate items. Nothing is persisted;
// clients save accepted suggestions through PUT /api/list/{token}.
func postSuggest(suggester Suggester, opts Options, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if suggester == nil {
			return fail(c, http.StatusServiceUnavailable, reasonSuggestDisabled, nil)
		}

		body, err := readBody(c.Request().Body, opts.MaxBodyBytes)
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				return fail(c, http.StatusRequestEntityTooLarge, reasonBodyTooLarge, nil)
			}
			return fail(c, http.StatusBadRequest, reasonInvalidBody, nil)
		}
		prompt, catalog, reason := parseSuggestRequest(body)
		if reason != "" {
			return fail(c, http.StatusBadRequest, reason, nil)
		}

		start := time.Now()
		candidates, err := suggester.Generate(c.Request().Context(), prompt, catalog)
		entry := logger.WithField("duration_ms", durationToMillis(time.Since(start)))
		if err != nil {
			status, reason := suggestFailure(err)
			entry.WithError(err).WithField("status", status).Warn("suggestion request failed")
			return fail(c, status, reason, nil)
		}

		items := suggestedItems(candidates, opts.nowMillis())
		entry.WithFields(log.Fields{"candidates": len(candidates), "items": len(items)}).Info("suggestion request served")
		return c.JSON(http.StatusOK, suggestResponse{Items: items})
	}
}

func parseSuggestRequest(body []byte) (prompt, catalog, reason string) {
	var raw any
	if err := sonic.ConfigStd.Unmarshal(body, &raw); err != nil {
		return "", "", reasonInvalidJSON
	}
	rec, ok := raw.(map[string]any)
	if !ok {
		return "", "", reasonInvalidBody
	}
	prompt, _ = rec["prompt"].(string)
	prompt = strings.TrimSpace(prompt)
	if prompt == "" || utf8.RuneCountInString(prompt) > maxPromptRunes {
		return "", "", reasonInvalidBody
	}
	if v, present := rec["catalog"]; present && v != nil {
		if catalog, ok = v.(string); !ok {
			return "", "", reasonInvalidBody
		}
	}
	return prompt, catalog, ""
}

func suggestFailure(err error) (int, string) {
	switch {
	case errors.Is(err, suggest.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, reasonUpstreamTimeout
	case errors.Is(err, suggest.ErrMalformed):
		return http.StatusBadGateway, reasonUpstreamBadReply
	case errors.Is(err, suggest.ErrNoEndpoints):
		return http.StatusServiceUnavailable, reasonSuggestDisabled
	default:
		return http.StatusBadGateway, reasonUpstreamError
	}
}

// suggestedItems turns raw candidates into list items. Every candidate gets a
// fresh id, its index as position and now as timestamp, then passes through
// the same normalizer as client payloads. Unusable candidates are dropped.
func suggestedItems(candidates []any, now int64) []domain.Item {
	items := make([]domain.Item, 0, len(candidates))
	for _, cand := range candidates {
		rec, ok := cand.(map[string]any)
		if !ok {
			continue
		}
		label, _ := rec["label"].(string)
		label = truncateRunes(strings.TrimSpace(label), maxSuggestedLabel)
		if label == "" {
			continue
		}
		checked, _ := rec["checked"].(bool)

		item, err := domain.NormalizeItem(map[string]any{
			"id":      uuid.NewString(),
			"label":   label,
			"checked": checked,
			"tags":    rec["tags"],
		}, len(items), now)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return domain.SortAndRenumber(items)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
