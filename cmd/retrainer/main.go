// Command retrainer runs the weekly retrain pipeline as a
// process separate from the prediction server, for one or more
// surface variants, and promotes each candidate that beats the active
// artifact.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keiba-predict/engine/config"
	"github.com/keiba-predict/engine/modelmanager"
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
	"github.com/keiba-predict/engine/train"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var surfaces string
	var endYear int
	var years int

	cmd := &cobra.Command{
		Use:   "retrainer",
		Short: "Run the weekly retrain pipeline and promote improved artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrain(cmd.Context(), surfaces, endYear, years)
		},
	}
	cmd.Flags().StringVar(&surfaces, "surfaces", "mixed,turf,dirt", "comma-separated list of surface variants to retrain (mixed,turf,dirt)")
	cmd.Flags().IntVar(&endYear, "end-year", time.Now().Year(), "last year of the training window")
	cmd.Flags().IntVar(&years, "years", train.DefaultTrainingYears, "number of years in the training window")
	return cmd
}

func runRetrain(ctx context.Context, surfaces string, endYear, years int) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.InitLogger(cfg.LogLevel, cfg.LogJSON)
	log := config.Logger()

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("retrainer: open store: %w", err)
	}
	defer s.Close()

	mgr := modelmanager.New(cfg.ModelPath)

	var failures int
	for _, name := range strings.Split(surfaces, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := retrainOne(ctx, s, mgr, cfg, name, endYear, years, log); err != nil {
			log.Errorw("retrain failed", "surface", name, "error", err)
			failures++
			continue
		}
	}
	if failures > 0 {
		return fmt.Errorf("retrainer: %d of %d surface(s) failed", failures, len(strings.Split(surfaces, ",")))
	}
	return nil
}

func retrainOne(ctx context.Context, s store.Store, mgr *modelmanager.Manager, cfg config.Config, surfaceName string, endYear, years int, log *zap.SugaredLogger) error {
	surfaceFilter := surfaceFilterFor(surfaceName)
	version := fmt.Sprintf("%s-%s", surfaceName, time.Now().UTC().Format("20060102T150405Z"))

	result, err := train.Run(ctx, s, endYear, years, surfaceFilter, version)
	if err != nil {
		// A training error aborts the run without promoting; the old
		// artifact stays active.
		return fmt.Errorf("train: %w", err)
	}
	log.Infow("retrain complete", "surface", surfaceName, "version", version,
		"train_rows", result.TrainRows, "test_rows", result.TestRows, "metrics", result.TestMetrics)

	promo, err := mgr.Promote(ctx, s, surfaceFilter, result.Artifact, cfg.BacktestYear)
	if err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	log.Infow("promotion decision", "surface", surfaceName, "promoted", promo.Promoted,
		"reason", promo.Reason, "old_score", promo.OldScore, "new_score", promo.NewScore)

	if err := s.SaveCalibrationReport(ctx, result.Artifact.Version, result.CalibrationBins); err != nil {
		return fmt.Errorf("save calibration report: %w", err)
	}

	return writeSidecarReport(cfg.ModelPath, surfaceName, result, promo)
}

func surfaceFilterFor(name string) *models.Surface {
	switch name {
	case "turf":
		s := models.SurfaceTurf
		return &s
	case "dirt":
		s := models.SurfaceDirt
		return &s
	default:
		return nil
	}
}

// sidecarReport is the JSON shape written to
// "surface_train_result_{surface}_{YYYYMMDD}.json".
type sidecarReport struct {
	Surface     string             `json:"surface"`
	Version     string             `json:"version"`
	Promoted    bool               `json:"promoted"`
	Reason      string             `json:"reason"`
	OldScore    float64            `json:"old_score"`
	NewScore    float64            `json:"new_score"`
	TrainRows   int                `json:"train_rows"`
	TestRows    int                `json:"test_rows"`
	TestMetrics map[string]float64 `json:"test_metrics"`
	GeneratedAt time.Time          `json:"generated_at"`
}

func writeSidecarReport(modelPath, surfaceName string, result train.Result, promo modelmanager.PromotionResult) error {
	report := sidecarReport{
		Surface:     surfaceName,
		Version:     result.Artifact.Version,
		Promoted:    promo.Promoted,
		Reason:      promo.Reason,
		OldScore:    promo.OldScore,
		NewScore:    promo.NewScore,
		TrainRows:   result.TrainRows,
		TestRows:    result.TestRows,
		TestMetrics: result.TestMetrics,
		GeneratedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("surface_train_result_%s_%s.json", surfaceName, time.Now().UTC().Format("20060102"))
	return os.WriteFile(filepath.Join(modelPath, name), data, 0o644)
}

func openStore(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (store.Store, error) {
	if cfg.DBMode == config.DBModeMock {
		return store.NewMockStore(), nil
	}
	return store.NewPostgresStore(ctx, store.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     int(cfg.DBPort),
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		PoolMin:  cfg.DBPoolMin,
		PoolMax:  cfg.DBPoolMax,
	}, log)
}
