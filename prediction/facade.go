// Package prediction implements the prediction service facade: the single entry point that turns a race id into a fully ranked,
// bias-adjusted PredictionResponse and persists it.
package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keiba-predict/engine/adjust"
	"github.com/keiba-predict/engine/config"
	"github.com/keiba-predict/engine/features"
	"github.com/keiba-predict/engine/modelmanager"
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/probability"
	"github.com/keiba-predict/engine/store"
)

// Facade wires the store, model manager, and adjust/probability packages
// into the single generate_prediction operation.
type Facade struct {
	store   store.Store
	models  *modelmanager.Manager
	log     *zap.SugaredLogger
	biasEnv *time.Time // KEIBA_BIAS_DATE override, config.Config.BiasDate
}

// New builds a Facade. biasEnvOverride is config.Config.BiasDate, nil when
// unset.
func New(s store.Store, mgr *modelmanager.Manager, log *zap.SugaredLogger, biasEnvOverride *time.Time) *Facade {
	if log == nil {
		log = config.Logger()
	}
	return &Facade{store: s, models: mgr, log: log, biasEnv: biasEnvOverride}
}

// GeneratePrediction runs the full seven-step pipeline for one race and
// upserts the result under (raceID, isFinal). biasDate, if
// non-nil, pins the bias-snapshot date explicitly (the top tier of
// adjust.ResolveBiasDate).
func (f *Facade) GeneratePrediction(ctx context.Context, raceID string, isFinal bool, biasDate *time.Time) (models.PredictionResponse, error) {
	race, err := f.store.GetRace(ctx, raceID)
	if err != nil {
		return models.PredictionResponse{}, fmt.Errorf("prediction: %w", err)
	}

	bundle, err := f.store.LoadRaceBundle(ctx, raceID)
	if err != nil {
		return models.PredictionResponse{}, fmt.Errorf("prediction: load race bundle: %w", err)
	}

	rows, err := features.ExtractRace(ctx, f.store, raceID)
	if err != nil {
		return models.PredictionResponse{}, fmt.Errorf("prediction: extract features: %w", err)
	}

	ens, artifact, err := f.models.Load(race.Surface())
	if err != nil {
		return models.PredictionResponse{}, fmt.Errorf("prediction: load model: %w", err)
	}

	post := make(map[string]int, len(bundle.Entries))
	jockey := make(map[string]string, len(bundle.Entries))
	for _, e := range bundle.Entries {
		post[e.HorseID] = e.Post
		jockey[e.HorseID] = e.JockeyID
	}

	inputs := make([]adjust.Input, len(rows))
	for i, row := range rows {
		inputs[i] = adjust.Input{
			HorseNumber: row.HorseNumber,
			HorseID:     row.HorseID,
			Post:        post[row.HorseID],
			JockeyID:    jockey[row.HorseID],
			Pred:        ens.Predict(row.Values()),
		}
	}

	resolvedBiasDate := adjust.ResolveBiasDate(biasDate, f.biasEnv, race.DeclaredStart)
	snapshot, err := f.store.GetBiasSnapshot(ctx, resolvedBiasDate, race.VenueCode)
	if err != nil {
		return models.PredictionResponse{}, fmt.Errorf("prediction: load bias snapshot: %w", err)
	}
	inputs = adjust.ApplyBias(inputs, snapshot)

	if isFinal {
		surface, condition, err := f.store.GetCurrentTrackCondition(ctx, raceID)
		if err != nil {
			return models.PredictionResponse{}, fmt.Errorf("prediction: load track condition: %w", err)
		}
		if surface == race.Surface() {
			inputs = adjust.ApplyTrackCondition(inputs, condition, bundle.TrackConditionStats)
		}
	}

	horseInputs := make([]probability.HorseInput, len(inputs))
	for i, in := range inputs {
		horseInputs[i] = probability.HorseInput{HorseNumber: in.HorseNumber, HorseID: in.HorseID, Pred: in.Pred}
	}
	ranked := probability.Derive(horseInputs)

	resp := models.PredictionResponse{
		RaceID:         raceID,
		IsFinal:        isFinal,
		GeneratedAt:    time.Now().UTC(),
		ModelVersion:   artifact.Version,
		Horses:         ranked,
		TopQuinella:    probability.TopByQuinella(ranked),
		TopPlace:       probability.TopByPlace(ranked),
		DarkHorses:     probability.DarkHorses(ranked),
		RaceConfidence: probability.RaceConfidence(ranked),
	}

	rec := &models.PredictionRecord{
		PredictionID: uuid.NewString(),
		RaceID:       raceID,
		RaceDate:     race.DeclaredStart,
		IsFinal:      isFinal,
		Result:       resp,
		PredictedAt:  resp.GeneratedAt,
	}
	if err := f.store.UpsertPrediction(ctx, rec); err != nil {
		return models.PredictionResponse{}, fmt.Errorf("prediction: upsert: %w", err)
	}

	f.log.Infow("generated prediction", "race_id", raceID, "is_final", isFinal, "horses", len(ranked))
	return resp, nil
}
