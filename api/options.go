package api

import (
	"regexp"
	"time"

	"shoplist-api/domain"
)

const (
	defaultMaxBodyBytes = 1 << 20 // 1 MiB
	maxPromptRunes      = 2000
	maxSuggestedLabel   = 80
)

var defaultTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,}$`)

// Options holds the immutable settings shared by all handlers.
type Options struct {
	DefaultTitle string
	MaxBodyBytes int64
	TokenPattern *regexp.Regexp
	Now          func() time.Time
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DefaultTitle: domain.DefaultTitle,
		MaxBodyBytes: defaultMaxBodyBytes,
		TokenPattern: defaultTokenPattern,
		Now:          time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultTitle == "" {
		o.DefaultTitle = d.DefaultTitle
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = d.MaxBodyBytes
	}
	if o.TokenPattern == nil {
		o.TokenPattern = d.TokenPattern
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

func (o Options) nowMillis() int64 {
	return domain.NowMillis(o.Now())
}
