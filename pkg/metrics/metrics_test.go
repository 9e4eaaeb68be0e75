package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

func TestObserveStrike(t *testing.T) {
	baseStrikes := testutil.ToFloat64(strikes)
	baseBlocks := testutil.ToFloat64(blocks)

	ObserveStrike(false)
	ObserveStrike(true)

	if got := testutil.ToFloat64(strikes); got != baseStrikes+2 {
		t.Fatalf("strikes = %v; want %v", got, baseStrikes+2)
	}
	if got := testutil.ToFloat64(blocks); got != baseBlocks+1 {
		t.Fatalf("blocks = %v; want %v", got, baseBlocks+1)
	}
}

func TestObserveByLabel(t *testing.T) {
	baseAdm := testutil.ToFloat64(admissions.WithLabelValues(DecisionCooldown))
	baseFail := testutil.ToFloat64(failures.WithLabelValues(string(domain.KindSynthesis)))
	baseMod := testutil.ToFloat64(moderationRejections.WithLabelValues("voice"))
	baseReply := testutil.ToFloat64(replies.WithLabelValues("audio"))

	ObserveAdmission(DecisionCooldown)
	ObserveFailure(domain.KindSynthesis)
	ObserveModerationRejection("voice")
	ObserveReply("audio")

	if got := testutil.ToFloat64(admissions.WithLabelValues(DecisionCooldown)); got != baseAdm+1 {
		t.Errorf("admissions{cooldown} = %v; want %v", got, baseAdm+1)
	}
	if got := testutil.ToFloat64(failures.WithLabelValues(string(domain.KindSynthesis))); got != baseFail+1 {
		t.Errorf("failures{synthesis} = %v; want %v", got, baseFail+1)
	}
	if got := testutil.ToFloat64(moderationRejections.WithLabelValues("voice")); got != baseMod+1 {
		t.Errorf("moderation{voice} = %v; want %v", got, baseMod+1)
	}
	if got := testutil.ToFloat64(replies.WithLabelValues("audio")); got != baseReply+1 {
		t.Errorf("replies{audio} = %v; want %v", got, baseReply+1)
	}
}
