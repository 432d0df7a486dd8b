package upload

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/mediaqueue/pkg/admission"
	"github.com/dmitrymomot/mediaqueue/pkg/logger"
	"github.com/dmitrymomot/mediaqueue/pkg/media"
	"github.com/dmitrymomot/mediaqueue/pkg/processor"
)

// PolicyConfig holds the thresholds used by MediaPolicy.
type PolicyConfig struct {
	MaxConcurrent    int
	MaxBytesInFlight int64
	LargeFileBytes   int64
	LargeImagePixels int64
	// Rules, when set, narrows MaxConcurrent by the size of the largest light upload running.
	Rules *admission.Rules
}

// MediaPolicy admits uploads by what they are rather than how many there are.
//
// Heavy uploads (videos, large files, very large images) run alone: they start
// only when nothing else is running and block admission until they finish.
// Light uploads fill up to MaxConcurrent slots while their summed size stays
// within MaxBytesInFlight. A heavy or oversized item at the head of the queue
// does not block lighter items behind it.
//
// Items whose probe fails are treated as light with unknown size, so the
// upload itself reports the real error.
type MediaPolicy struct {
	prober media.Prober
	cfg    PolicyConfig
	logger *slog.Logger
}

// NewMediaPolicy creates a policy that classifies items with prober.
func NewMediaPolicy(prober media.Prober, cfg PolicyConfig, log *slog.Logger) *MediaPolicy {
	if prober == nil {
		prober = media.NewCachedProber(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	cfg.MaxConcurrent = max(cfg.MaxConcurrent, 1)
	return &MediaPolicy{prober: prober, cfg: cfg, logger: log}
}

type weight struct {
	size  int64
	heavy bool
}

func (p *MediaPolicy) weigh(ctx context.Context, it Item) weight {
	info, err := p.prober.Probe(ctx, it.Path)
	if err != nil {
		p.logger.DebugContext(ctx, "probe failed, treating upload as light",
			logger.UploadID(it.ID),
			logger.Path(it.Path),
			logger.Error(err))
		return weight{}
	}
	return weight{size: info.Size, heavy: p.heavy(info)}
}

func (p *MediaPolicy) heavy(info media.Info) bool {
	switch {
	case info.Kind == media.KindVideo:
		return true
	case p.cfg.LargeFileBytes > 0 && info.Size >= p.cfg.LargeFileBytes:
		return true
	case info.Kind == media.KindImage && p.cfg.LargeImagePixels > 0 && info.Pixels() >= p.cfg.LargeImagePixels:
		return true
	default:
		return false
	}
}

func (p *MediaPolicy) limitFor(limit int, size int64) int {
	if p.cfg.Rules == nil {
		return limit
	}
	return min(limit, p.cfg.Rules.LimitFor(size))
}

// Admit implements processor.AdmissionPolicy.
func (p *MediaPolicy) Admit(ctx context.Context, running, queued []processor.QueuedItem[Item]) ([]processor.QueuedItem[Item], error) {
	limit := p.cfg.MaxConcurrent
	var inFlight int64
	for _, r := range running {
		w := p.weigh(ctx, r.Item)
		if w.heavy {
			return nil, nil
		}
		inFlight += w.size
		limit = p.limitFor(limit, w.size)
	}

	var admitted []processor.QueuedItem[Item]
	for _, q := range queued {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		busy := len(running) + len(admitted)
		if busy >= limit {
			break
		}

		w := p.weigh(ctx, q.Item)
		if w.heavy {
			if busy == 0 {
				return []processor.QueuedItem[Item]{q}, nil
			}
			continue
		}

		next := p.limitFor(limit, w.size)
		if busy+1 > next {
			continue
		}
		if p.cfg.MaxBytesInFlight > 0 && busy > 0 && inFlight+w.size > p.cfg.MaxBytesInFlight {
			continue
		}

		admitted = append(admitted, q)
		inFlight += w.size
		limit = next
	}

	return admitted, nil
}
