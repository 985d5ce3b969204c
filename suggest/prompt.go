package suggest

import "strings"

const systemPrompt = `You turn a shopping request into a grocery list.
Reply with a single JSON object of the form
{"items":[{"label":"Milk","tags":["dairy"],"checked":false}]}.
Labels are short product names. Tags are lowercase aisle or category names.
Do not add commentary.`

func buildMessages(prompt, catalog string) []chatMessage {
	var user strings.Builder
	user.WriteString(strings.TrimSpace(prompt))
	if catalog = strings.TrimSpace(catalog); catalog != "" {
		user.WriteString("\n\nPrefer products from this catalog:\n")
		user.WriteString(catalog)
	}
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// ParseModels splits a comma separated model list into endpoints sharing one
// URL and key.
func ParseModels(url, apiKey, models string) []Endpoint {
	var out []Endpoint
	for _, m := range strings.Split(models, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		out = append(out, Endpoint{URL: url, APIKey: apiKey, Model: m})
	}
	return out
}
