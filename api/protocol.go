package api

import "shoplist-api/domain"

const (
	reasonInvalidPath      = "invalid_path"
	reasonInvalidToken     = "invalid_token"
	reasonInvalidJSON      = "invalid_json"
	reasonInvalidBody      = "invalid_body"
	reasonInvalidItem      = "invalid_item"
	reasonBodyTooLarge     = "body_too_large"
	reasonMethodNotAllowed = "method_not_allowed"
	reasonNotFound         = "not_found"
	reasonStorage          = "storage_error"
	reasonInternal         = "internal_error"
	reasonUpstreamTimeout  = "upstream_timeout"
	reasonUpstreamError    = "upstream_error"
	reasonUpstreamBadReply = "upstream_malformed"
	reasonSuggestDisabled  = "suggestions_disabled"
)

// error response body
type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// DELETE /api/list/{token} and /healthz response body
type okResponse struct {
	OK bool `json:"ok"`
}

// POST /api/suggest response body
type suggestResponse struct {
	Items []domain.Item `json:"items"`
}
