package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

// LoadBoxConfig reads stored asset parameters. Configured assets without a
// stored row get defaults, which are inserted.
func (m *Manager) LoadBoxConfig(ctx context.Context) error {
	stored, err := m.storage.BoxConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load box configs: %w", err)
	}

	known := make(map[string]struct{}, len(stored))
	for _, b := range stored {
		known[b.AssetPair] = struct{}{}
	}

	missing := make([]entity.BoxSize, 0)
	for _, pair := range m.opts.Assets {
		if _, ok := known[pair]; ok {
			continue
		}
		known[pair] = struct{}{}
		missing = append(missing, entity.DefaultBoxSize(pair))
	}
	if len(missing) > 0 {
		if err := m.storage.InsertBoxConfigs(ctx, missing); err != nil {
			return fmt.Errorf("insert default box configs: %w", err)
		}
		stored = append(stored, missing...)
	}

	for i := range stored {
		if stored[i].ScaleK == 0 {
			stored[i].ScaleK = entity.DefaultScaleK
		}
	}

	m.boxMx.Lock()
	m.configured = stored
	m.boxMx.Unlock()

	return nil
}

// recalculateBoxes derives the box width of every enabled asset that has graph samples
// and swaps in the new calculated set.
func (m *Manager) recalculateBoxes() {
	m.boxMx.Lock()
	calculated := make([]entity.BoxSize, 0, len(m.configured))
	for i := range m.configured {
		box := &m.configured[i]
		if !box.GameAllowed {
			continue
		}
		samples := m.graph.Samples(box.AssetPair)
		if len(samples) == 0 {
			continue
		}

		avg := mean(samples)
		volatility := m.graph.Volatility(box.AssetPair)
		if volatility > 0 {
			box.BoxWidth = volatility * box.ScaleK
			saved := *box
			m.queue.Enqueue("box:"+box.AssetPair, "save box config", func(ctx context.Context) error {
				return m.storage.SaveBoxConfig(ctx, saved)
			})
		}

		calc := *box
		calc.BoxWidth = avg * box.BoxWidth
		calculated = append(calculated, calc)

		m.log.Info(fmt.Sprintf("[%s] Volatility=%g, Scale_K=%g, BoxWidth=%g", box.AssetPair, volatility, box.ScaleK, calc.BoxWidth),
			slog.Int("samples", len(samples)), slog.Float64("avg", avg))
	}
	m.boxMx.Unlock()

	m.calculated.Store(&calculated)
}

// ReloadGameAssets reloads box config and schedules a recalculation.
func (m *Manager) ReloadGameAssets(ctx context.Context) error {
	if err := m.LoadBoxConfig(ctx); err != nil {
		return err
	}
	select {
	case m.reload <- struct{}{}:
	default:
	}
	return nil
}

// CalculatedBoxes returns the current calculated set.
func (m *Manager) CalculatedBoxes() []entity.BoxSize {
	p := m.calculated.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (m *Manager) calculatedBox(pair string) (entity.BoxSize, bool) {
	for _, b := range m.CalculatedBoxes() {
		if b.AssetPair == pair {
			return b, true
		}
	}
	return entity.BoxSize{}, false
}

// ConfiguredBox returns the stored parameters of pair.
func (m *Manager) ConfiguredBox(pair string) (entity.BoxSize, bool) {
	m.boxMx.RLock()
	defer m.boxMx.RUnlock()

	for _, b := range m.configured {
		if b.AssetPair == pair {
			return b, true
		}
	}
	return entity.BoxSize{}, false
}

// SavesHistory reports whether quotes of pair are kept in the history store.
func (m *Manager) SavesHistory(pair string) bool {
	b, ok := m.ConfiguredBox(pair)
	return ok && b.SaveHistory
}

func (m *Manager) allowedAssets() []string {
	m.boxMx.RLock()
	defer m.boxMx.RUnlock()

	out := make([]string, 0, len(m.configured))
	for _, b := range m.configured {
		if b.GameAllowed {
			out = append(out, b.AssetPair)
		}
	}
	return out
}

// Volatilities returns the current volatility of every enabled asset.
func (m *Manager) Volatilities() map[string]float64 {
	out := make(map[string]float64)
	for _, pair := range m.allowedAssets() {
		out[pair] = m.graph.Volatility(pair)
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
