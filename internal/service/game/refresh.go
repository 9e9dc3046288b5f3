package game

import (
	"context"
	"fmt"
	"log/slog"
)

// refreshCoefficients runs a change pass when the last change is older than
// ChangeEvery, and a get pass otherwise.
func (m *Manager) refreshCoefficients(ctx context.Context) {
	if err := m.coefGate.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.coefGate.Release(1)

	if m.now().Sub(m.lastChange) > m.opts.ChangeEvery {
		m.changePass(ctx)
		return
	}
	m.getPass(ctx)
}

func (m *Manager) changePass(ctx context.Context) {
	for _, box := range m.CalculatedBoxes() {
		if !box.GameAllowed {
			continue
		}
		res, err := m.coefSvc.Change(ctx, m.ID, box.AssetPair,
			int(box.TimeToFirstBox), int(box.BoxHeight), box.BoxWidth, NPriceIndex, NTimeIndex)
		if err != nil {
			m.metrics.CoefErrors.WithLabelValues("change").Inc()
			m.errs.Error("SetCoeffs", fmt.Errorf("[%s] %w", box.AssetPair, err))
			continue
		}
		m.lastChange = m.now()
		m.log.Debug("coefficients changed", slog.String("pair", box.AssetPair), slog.String("result", res))
	}
}

func (m *Manager) getPass(ctx context.Context) {
	for _, pair := range m.allowedAssets() {
		table, err := m.coefSvc.Request(ctx, m.ID, pair)
		if err != nil {
			m.metrics.CoefErrors.WithLabelValues("get").Inc()
			m.errs.Error("GetCoeffs", fmt.Errorf("[%s] %w", pair, err))
			continue
		}

		status, previous := m.coefs.Set(pair, table)
		if status == previous {
			continue
		}
		switch {
		case status == CoefStatusOK && previous == AllOnesStatus:
			m.log.Warn(fmt.Sprintf("Coefficients for [%s] are not 1.0 anymore", pair))
		case status == AllOnesStatus:
			m.log.Warn(fmt.Sprintf("Coefficients for [%s] are all 1.0", pair))
		case status != CoefStatusOK:
			m.log.Warn("coefficient table rejected", slog.String("pair", pair), slog.String("status", status))
		}
	}
}
