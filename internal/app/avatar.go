package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/config"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/pose"
	"github.com/ayusman/minime/internal/retarget"
	"github.com/ayusman/minime/internal/skeleton"
	"github.com/ayusman/minime/internal/store"
)

// LoadTable returns the retargeting table for cfg: the YAML file when one is configured,
// otherwise the bundled maps, with rigs calibrated in st layered on top.
func LoadTable(cfg config.AvatarConfig, st *store.Store) (*retarget.Table, error) {
	table := retarget.DefaultTable()
	if cfg.Retarget != "" {
		t, err := retarget.LoadTable(cfg.Retarget)
		if err != nil {
			return nil, err
		}
		table = t
	}

	if st != nil {
		n, err := st.Rigs().LoadInto(table)
		if err != nil {
			return nil, fmt.Errorf("load stored rigs: %w", err)
		}
		if n > 0 {
			logger.Log().Info("loaded calibrated rigs", zap.Int("count", n))
		}
	}
	return table, nil
}

// LoadSolver loads the skeleton asset, looks up its retargeting map and binds the two.
// A map that names joints the skeleton lacks fails here with a *retarget.ConfigError.
func LoadSolver(cfg config.AvatarConfig, st *store.Store) (*pose.Solver, error) {
	skel, err := skeleton.Load(cfg.Skeleton, cfg.SkeletonID)
	if err != nil {
		return nil, fmt.Errorf("load skeleton: %w", err)
	}

	table, err := LoadTable(cfg, st)
	if err != nil {
		return nil, err
	}

	m, err := table.Lookup(skel.ID())
	if err != nil {
		return nil, err
	}

	solver, err := pose.NewSolver(m, skel)
	if err != nil {
		return nil, err
	}

	logger.Log().Info("avatar bound",
		zap.String("skeleton", skel.ID()),
		zap.Int("joints", skel.Len()),
		zap.Int("rules", len(m.Rules())))
	return solver, nil
}
