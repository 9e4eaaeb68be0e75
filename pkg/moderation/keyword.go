package moderation

import (
	"context"
	"strings"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

var DefaultBlocklist = []string{"spamlink.com", "illegal"}

type keywordFilter struct {
	blocklist []string
}

// NewKeywordFilter builds a filter over a lower-cased copy of blocklist. Empty entries are dropped.
func NewKeywordFilter(blocklist []string) *keywordFilter {
	normalized := make([]string, 0, len(blocklist))
	for _, kw := range blocklist {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &keywordFilter{blocklist: normalized}
}

// Moderate never fails; the signature matches external moderation services.
func (f *keywordFilter) Moderate(_ context.Context, text string) (domain.Verdict, error) {
	return Check(f.blocklist, text), nil
}

// Check reports the text as blocked when it contains any of the lower-case keywords.
func Check(blocklist []string, text string) domain.Verdict {
	text = strings.ToLower(text)
	for _, kw := range blocklist {
		if strings.Contains(text, kw) {
			return domain.Verdict{Blocked: true, Reason: domain.ModerationReasonKeyword}
		}
	}
	return domain.Verdict{}
}
