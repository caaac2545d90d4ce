package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/docuextract/docengine/internal/db"
	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/logger"
	"github.com/docuextract/docengine/internal/metrics"
)

var cacheKeyPrefix = domain.KeyPrefix + "audio_cache:"

// Service is a content-addressed audio cache in front of the synthesis
// backend. Concurrent requests for the same text share one in-flight
// synthesis call; nothing is cached on failure.
type Service struct {
	synth       Synthesizer // optional; nil means synthesis is disabled
	store       store
	voiceConfig string
	ttl         time.Duration
	flights     singleflight.Group
}

// New creates a speech service. synth may be nil when the backend is not
// configured. voiceConfig is the serialized voice parameters; it is part of
// the cache key so a config change never serves stale audio.
func New(synth Synthesizer, s store, voiceConfig string, ttl time.Duration) *Service {
	return &Service{
		synth:       synth,
		store:       s,
		voiceConfig: voiceConfig,
		ttl:         ttl,
	}
}

// Enabled reports whether a synthesis backend is configured.
func (s *Service) Enabled() bool { return s.synth != nil }

// ContentType reports the MIME type of returned audio.
func (s *Service) ContentType() string {
	if s.synth == nil {
		return ""
	}
	return s.synth.ContentType()
}

// Speak returns audio for the text, from cache when possible. The cache key
// is a hash of the trimmed text plus the voice configuration.
func (s *Service) Speak(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("synthesis text: %w", domain.ErrEmptyQuery)
	}
	if s.synth == nil {
		return nil, domain.ErrSynthesisUnavailable
	}

	key := s.cacheKey(text)

	if audio, ok := s.getFromCache(ctx, key); ok {
		metrics.SynthesisCacheTotal.WithLabelValues("hit").Inc()
		return audio, nil
	}

	audio, err, shared := s.flights.Do(key, func() (any, error) {
		// A request that lost the race to a just-finished flight finds the
		// bytes already cached.
		if cached, ok := s.getFromCache(ctx, key); ok {
			return cached, nil
		}
		return s.synthesizeAndCache(ctx, key, text)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		metrics.SynthesisCacheTotal.WithLabelValues("shared").Inc()
	} else {
		metrics.SynthesisCacheTotal.WithLabelValues("miss").Inc()
	}

	return audio.([]byte), nil
}

func (s *Service) synthesizeAndCache(ctx context.Context, key, text string) ([]byte, error) {
	start := time.Now()

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	metrics.SynthesisDuration.Observe(time.Since(start).Seconds())

	if err := s.store.SetWithTTL(ctx, key, audio, s.ttl); err != nil {
		logger.FromContext(ctx).Warn("Failed to cache audio",
			zap.String("key", key), zap.Error(err))
	}

	return audio, nil
}

func (s *Service) getFromCache(ctx context.Context, key string) ([]byte, bool) {
	audio, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			logger.FromContext(ctx).Warn("Failed to read audio cache",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(audio) == 0 {
		return nil, false
	}
	return audio, true
}

func (s *Service) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text + "|" + s.voiceConfig))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}
