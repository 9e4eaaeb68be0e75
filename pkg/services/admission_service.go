package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/metrics"
)

// KeyedStore is a string key/value store with per-key expiry.
type KeyedStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// CompareAndSwap stores value only while key still holds old.
	CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error)
}

// cooldownAttempts bounds how often a check races other checks for the same user.
const cooldownAttempts = 3

type AdmissionConfig struct {
	Cooldown      time.Duration
	StrikeLimit   int64
	StrikeWindow  time.Duration
	BlockDuration time.Duration
}

var DefaultAdmissionConfig = AdmissionConfig{
	Cooldown:      2 * time.Second,
	StrikeLimit:   3,
	StrikeWindow:  24 * time.Hour,
	BlockDuration: time.Hour,
}

type admissionService struct {
	store KeyedStore
	cfg   AdmissionConfig
	now   func() time.Time
}

func NewAdmissionService(store KeyedStore, cfg AdmissionConfig, now func() time.Time) *admissionService {
	if now == nil {
		now = time.Now
	}
	return &admissionService{store: store, cfg: cfg, now: now}
}

func blockedKey(userID domain.UserID) string  { return "blocked:" + strconv.FormatInt(userID, 10) }
func strikesKey(userID domain.UserID) string  { return "strikes:" + strconv.FormatInt(userID, 10) }
func cooldownKey(userID domain.UserID) string { return "cooldown:" + strconv.FormatInt(userID, 10) }

// Check admits the user unless they are blocked or still inside the cooldown
// window. On a store failure the user is admitted and the error is returned
// alongside so the caller can log it.
func (a *admissionService) Check(ctx context.Context, userID domain.UserID) (domain.Admission, error) {
	admission, err := a.check(ctx, userID)
	if err != nil {
		metrics.ObserveAdmission(metrics.DecisionFailOpen)
		return domain.Admission{Allowed: true}, err
	}

	switch {
	case admission.Blocked:
		metrics.ObserveAdmission(metrics.DecisionBlocked)
	case !admission.Allowed:
		metrics.ObserveAdmission(metrics.DecisionCooldown)
	default:
		metrics.ObserveAdmission(metrics.DecisionAllowed)
	}
	return admission, nil
}

func (a *admissionService) check(ctx context.Context, userID domain.UserID) (domain.Admission, error) {
	_, blocked, err := a.store.Get(ctx, blockedKey(userID))
	if err != nil {
		return domain.Admission{}, fmt.Errorf("fetching block flag: %w", err)
	}
	if blocked {
		return domain.Admission{Blocked: true}, nil
	}

	key := cooldownKey(userID)
	now := a.now()
	next := strconv.FormatInt(now.Add(a.cfg.Cooldown).UnixMilli(), 10)

	// Losing a race to another check for the same user restarts the attempt.
	for attempt := 0; attempt < cooldownAttempts; attempt++ {
		ok, err := a.store.SetNX(ctx, key, next, a.cfg.Cooldown)
		if err != nil {
			return domain.Admission{}, fmt.Errorf("setting cooldown: %w", err)
		}
		if ok {
			return domain.Admission{Allowed: true}, nil
		}

		value, found, err := a.store.Get(ctx, key)
		if err != nil {
			return domain.Admission{}, fmt.Errorf("fetching cooldown: %w", err)
		}
		if !found {
			continue
		}

		nextAllowed, err := strconv.ParseInt(value, 10, 64)
		if err == nil && now.UnixMilli() < nextAllowed {
			return domain.Admission{WaitSeconds: waitSeconds(nextAllowed - now.UnixMilli())}, nil
		}

		// Unreadable or stale entry: only the check that still sees it may take the slot over.
		swapped, err := a.store.CompareAndSwap(ctx, key, value, next, a.cfg.Cooldown)
		if err != nil {
			return domain.Admission{}, fmt.Errorf("resetting cooldown: %w", err)
		}
		if swapped {
			return domain.Admission{Allowed: true}, nil
		}
	}

	return domain.Admission{WaitSeconds: max(1, waitSeconds(a.cfg.Cooldown.Milliseconds()))}, nil
}

func waitSeconds(ms int64) int {
	return int((ms + 999) / 1000)
}

// RecordStrike counts a moderation violation. Reaching the strike limit blocks
// the user for the block duration.
func (a *admissionService) RecordStrike(ctx context.Context, userID domain.UserID) (domain.Strike, error) {
	key := strikesKey(userID)

	count, err := a.store.Incr(ctx, key)
	if err != nil {
		return domain.Strike{}, fmt.Errorf("incrementing strikes: %w", err)
	}
	if err := a.store.Expire(ctx, key, a.cfg.StrikeWindow); err != nil {
		return domain.Strike{Count: count}, fmt.Errorf("setting strikes expiry: %w", err)
	}

	strike := domain.Strike{Count: count}
	if count >= a.cfg.StrikeLimit {
		if err := a.store.Set(ctx, blockedKey(userID), "1", a.cfg.BlockDuration); err != nil {
			return strike, fmt.Errorf("setting block flag: %w", err)
		}
		strike.Escalated = true
	}

	metrics.ObserveStrike(strike.Escalated)
	return strike, nil
}
