package services

import (
	"context"
	"log/slog"

	"github.com/driftguardstack/driftguard-engine/internal/baseline"
	"github.com/driftguardstack/driftguard-engine/internal/cache"
	"github.com/driftguardstack/driftguard-engine/internal/config"
	"github.com/driftguardstack/driftguard-engine/internal/drift"
	"github.com/driftguardstack/driftguard-engine/internal/engine"
	"github.com/driftguardstack/driftguard-engine/internal/repo"
)

// StreamOptions maps the configured stream defaults onto engine options.
func StreamOptions(cfg config.StreamConfig) engine.Options {
	return engine.Options{
		Fields:           append([]string(nil), cfg.Fields...),
		Method:           cfg.Method,
		Threshold:        cfg.Threshold,
		WindowSize:       cfg.WindowSize,
		IncludeAnalysis:  cfg.IncludeAnalysis,
		MetricField:      cfg.MetricField,
		BaselineField:    cfg.BaselineField,
		ModelField:       cfg.ModelField,
		ComparisonType:   cfg.ComparisonType,
		GenerateAlerts:   cfg.GenerateAlerts,
		TextField:        cfg.TextField,
		DriftThreshold:   cfg.DriftThreshold,
		DriftWindow:      cfg.DriftWindow,
		ResponseField:    cfg.ResponseField,
		PromptField:      cfg.PromptField,
		TimeField:        cfg.TimeField,
		TokenField:       cfg.TokenField,
		ConfidenceField:  cfg.ConfidenceField,
		IncludeTrends:    cfg.IncludeTrends,
		SimilarityMethod: cfg.SimilarityMethod,
	}
}

// LoadReference assembles the shared session reference tables. A configured
// remote reference service wins; local CSV files fill whatever the remote did
// not provide. Every source is optional: a failed load is logged as a warning
// and leaves that table empty, so the engine still runs with what it has.
func LoadReference(ctx context.Context, logger *slog.Logger, cfg config.ReferenceConfig, provider cache.Provider) engine.Reference {
	if logger == nil {
		logger = slog.Default()
	}
	var refs engine.Reference

	if cfg.BaseURL != "" {
		client := repo.NewReferenceClient(
			cfg.BaseURL,
			cfg.BaselinesPath,
			cfg.ThresholdsPath,
			cfg.DriftPath,
			cfg.Timeout,
			provider,
			cfg.CacheTTL,
		)
		if table, err := client.FetchBaselines(ctx); err != nil {
			logger.Warn("remote baselines unavailable", slog.Any("error", err))
		} else {
			refs.Baselines = table
		}
		if table, err := client.FetchThresholds(ctx); err != nil {
			logger.Warn("remote thresholds unavailable", slog.Any("error", err))
		} else {
			refs.Thresholds = table
		}
		if vecs, err := client.FetchDriftBaselines(ctx); err != nil {
			logger.Warn("remote drift baselines unavailable", slog.Any("error", err))
		} else {
			refs.DriftBaselines = vecs
		}
	}

	if refs.Baselines == nil && cfg.BaselinesFile != "" {
		table, err := baseline.LoadBaselines(cfg.BaselinesFile)
		if err != nil {
			logger.Warn("baseline file unavailable", slog.String("path", cfg.BaselinesFile), slog.Any("error", err))
		} else {
			refs.Baselines = table
		}
	}
	if refs.Thresholds == nil && cfg.ThresholdsFile != "" {
		table, err := baseline.LoadThresholds(cfg.ThresholdsFile)
		if err != nil {
			logger.Warn("threshold file unavailable", slog.String("path", cfg.ThresholdsFile), slog.Any("error", err))
		} else {
			refs.Thresholds = table
		}
	}
	if refs.DriftBaselines == nil && cfg.DriftFile != "" {
		vecs, err := drift.LoadBaselineEmbeddings(cfg.DriftFile)
		if err != nil {
			logger.Warn("drift baseline file unavailable", slog.String("path", cfg.DriftFile), slog.Any("error", err))
		} else {
			refs.DriftBaselines = vecs
		}
	}

	return refs
}
