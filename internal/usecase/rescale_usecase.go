package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/aggregate"
	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/pkg/validator"
	"github.com/landscape-rescale/internal/spatial"
)

// UnitKindConfig - тип единиц агрегации со своим слоем и порогом
type UnitKindConfig struct {
	Kind         domain.UnitKind
	Layer        domain.LayerSource
	MinimumCount int
	Accuracy     bool
}

type RescaleUseCase struct {
	observations repository.ObservationRepository
	layers       repository.UnitLayerRepository
	writer       repository.SummaryWriter
	store        repository.ResultStore
	cache        repository.CacheRepository
	kinds        []UnitKindConfig
	metrics      *metrics.Collector
	logger       *zap.Logger
}

func NewRescaleUseCase(
	observations repository.ObservationRepository,
	layers repository.UnitLayerRepository,
	writer repository.SummaryWriter,
	kinds []UnitKindConfig,
	collector *metrics.Collector,
	logger *zap.Logger,
) *RescaleUseCase {
	return &RescaleUseCase{
		observations: observations,
		layers:       layers,
		writer:       writer,
		kinds:        kinds,
		metrics:      collector,
		logger:       logger,
	}
}

// WithStore включает запись прогонов в каталог
func (uc *RescaleUseCase) WithStore(store repository.ResultStore) *RescaleUseCase {
	uc.store = store
	return uc
}

// WithResultsCache сбрасывает кеш API после записи индикатора в каталог.
// Повторный прогон с тем же run id иначе отдавал бы старые таблицы.
func (uc *RescaleUseCase) WithResultsCache(cache repository.CacheRepository) *RescaleUseCase {
	uc.cache = cache
	return uc
}

// RunIndicator выполняет пайплайн для одного индикатора со своим набором слоев
func (uc *RescaleUseCase) RunIndicator(ctx context.Context, runID, indicator string) domain.IndicatorResult {
	registry := NewLayerRegistry(uc.layers, uc.kinds, uc.metrics, uc.logger)
	result := uc.runIndicator(ctx, registry, runID, indicator)
	uc.metrics.RecordIndicator(result.Failed())
	return result
}

func (uc *RescaleUseCase) runIndicator(
	ctx context.Context,
	registry *LayerRegistry,
	runID, indicator string,
) domain.IndicatorResult {
	start := time.Now()
	result := domain.IndicatorResult{
		Indicator: indicator,
		Kinds:     []domain.KindOutcome{},
	}
	log := uc.logger.With(zap.String("run_id", runID), zap.String("indicator", indicator))

	fail := func(err error) domain.IndicatorResult {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		log.Error("Indicator failed",
			zap.String("error_kind", string(errors.KindOf(err))),
			zap.Error(err))
		return result
	}

	if err := uc.validate(indicator); err != nil {
		return fail(err)
	}

	timer := uc.metrics.StartStage("load_observations")
	set, err := uc.observations.Load(ctx, indicator)
	timer.ObserveDuration()
	if err != nil {
		return fail(err)
	}
	result.Observations = set.Len()
	uc.metrics.ObservationsLoaded.Add(float64(set.Len()))
	uc.metrics.ObservationsSkipped.Add(float64(set.Skipped))

	log.Debug("Observations loaded",
		zap.Int("observations", set.Len()),
		zap.Int("skipped", set.Skipped),
		zap.String("crs", set.CRS.String()))

	if err := uc.checkLayerCRS(ctx, registry, set); err != nil {
		return fail(err)
	}

	for _, kc := range uc.kinds {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		outcome, err := uc.runKind(ctx, registry, runID, set, kc)
		if err != nil {
			// уже записанные таблицы других типов единиц остаются
			return fail(fmt.Errorf("%s: %w", kc.Kind, err))
		}
		result.Kinds = append(result.Kinds, outcome)
	}

	result.Duration = time.Since(start)
	log.Info("Indicator rescaled",
		zap.Int("observations", result.Observations),
		zap.Int("kinds", len(result.Kinds)),
		zap.Duration("duration", result.Duration))
	return result
}

func (uc *RescaleUseCase) runKind(
	ctx context.Context,
	registry *LayerRegistry,
	runID string,
	set *domain.ObservationSet,
	kc UnitKindConfig,
) (domain.KindOutcome, error) {
	outcome := domain.KindOutcome{Kind: kc.Kind}

	_, locator, err := registry.Get(ctx, kc.Kind)
	if err != nil {
		return outcome, err
	}

	timer := uc.metrics.StartStage("assign")
	assignments := spatial.Assign(set.Observations, locator)
	timer.ObserveDuration()

	timer = uc.metrics.StartStage("summarize")
	summaries, err := aggregate.Summarize(kc.Kind, set.Observations, assignments, kc.MinimumCount)
	timer.ObserveDuration()
	if err != nil {
		return outcome, err
	}

	outcome.Assigned = len(assignments)
	outcome.Unassigned = set.Len() - len(assignments)
	outcome.Units = len(summaries)
	outcome.Filtered = aggregate.Filtered(assignments, len(summaries))
	uc.metrics.RecordKind(kc.Kind.String(), outcome.Assigned, outcome.Unassigned, outcome.Units, outcome.Filtered)

	uc.logger.Debug("Observations summarized",
		zap.String("indicator", set.Indicator),
		zap.String("kind", kc.Kind.String()),
		zap.Int("assigned", outcome.Assigned),
		zap.Int("unassigned", outcome.Unassigned),
		zap.Int("units", outcome.Units),
		zap.Int("filtered", outcome.Filtered))

	timer = uc.metrics.StartStage("write")
	defer timer.ObserveDuration()

	outcome.Artifact, err = uc.writer.WriteSummaries(ctx, runID, set.Indicator, kc.Kind, summaries)
	if err != nil {
		return outcome, err
	}

	if kc.Accuracy {
		report := aggregate.Accuracy(set.Indicator, kc.Kind, summaries)
		if err := uc.writer.WriteAccuracy(ctx, runID, set.Indicator, report); err != nil {
			return outcome, err
		}
	}

	return outcome, nil
}

// checkLayerCRS сверяет CRS наблюдений со всеми слоями до первого назначения.
// Проверка идет до первого слоя, который не загрузился: ошибка загрузки
// возвращается уже из цикла по типам, после записи предыдущих таблиц.
func (uc *RescaleUseCase) checkLayerCRS(ctx context.Context, registry *LayerRegistry, set *domain.ObservationSet) error {
	for _, kc := range uc.kinds {
		layer, _, err := registry.Get(ctx, kc.Kind)
		if err != nil {
			return nil
		}
		if err := spatial.CheckCRS(set.CRS, layer.CRS); err != nil {
			return fmt.Errorf("%s: %w", kc.Kind, err)
		}
	}
	return nil
}

// validate проверяет конфигурацию до любых вычислений
func (uc *RescaleUseCase) validate(indicator string) error {
	if err := validator.ValidateVar(indicator, "required,indicator"); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "invalid indicator name %q", indicator)
	}
	if len(uc.kinds) == 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "no unit kinds configured")
	}
	for _, kc := range uc.kinds {
		if kc.MinimumCount < 1 {
			return errors.Wrapf(errors.ErrInvalidMinimumCount, "%s: minimum_count = %d", kc.Kind, kc.MinimumCount)
		}
	}
	return nil
}

// RunBatch прогоняет индикаторы пулом из workers горутин.
// Ошибка индикатора попадает в его результат и не останавливает остальные.
// onDone вызывается последовательно из вызывающей горутины по мере готовности.
func (uc *RescaleUseCase) RunBatch(
	ctx context.Context,
	runID string,
	indicators []string,
	workers int,
	onDone func(domain.IndicatorResult),
) *domain.RunResult {
	indicators = dedupe(indicators)
	if workers < 1 {
		workers = 1
	}
	if workers > len(indicators) && len(indicators) > 0 {
		workers = len(indicators)
	}

	run := &domain.RunResult{
		RunID:      runID,
		Status:     domain.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		Indicators: make([]domain.IndicatorResult, 0, len(indicators)),
	}
	uc.recordRunStart(ctx, run)

	uc.logger.Info("Rescale run started",
		zap.String("run_id", runID),
		zap.Int("indicators", len(indicators)),
		zap.Int("workers", workers))

	registry := NewLayerRegistry(uc.layers, uc.kinds, uc.metrics, uc.logger)

	jobs := make(chan string)
	results := make(chan domain.IndicatorResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for indicator := range jobs {
				results <- uc.runIndicator(ctx, registry, runID, indicator)
			}
		}()
	}

	// Диспетчер: при отмене контекста новые индикаторы не раздаются
	go func() {
		defer close(jobs)
		for i, indicator := range indicators {
			select {
			case <-ctx.Done():
				for _, skipped := range indicators[i:] {
					results <- domain.IndicatorResult{
						Indicator: skipped,
						Kinds:     []domain.KindOutcome{},
						Error:     fmt.Sprintf("not started: %v", ctx.Err()),
					}
				}
				return
			case jobs <- indicator:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		uc.metrics.RecordIndicator(result.Failed())
		uc.recordIndicator(ctx, runID, result)
		if onDone != nil {
			onDone(result)
		}
		run.Indicators = append(run.Indicators, result)
	}

	sort.Slice(run.Indicators, func(i, j int) bool {
		return run.Indicators[i].Indicator < run.Indicators[j].Indicator
	})

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = run.ResolveStatus()
	uc.recordRunFinish(ctx, run)

	uc.logger.Info("Rescale run finished",
		zap.String("run_id", runID),
		zap.String("status", run.Status),
		zap.Int("indicators", len(run.Indicators)),
		zap.Int("failed", run.FailedCount()),
		zap.Duration("duration", finished.Sub(run.StartedAt)))

	return run
}

// Ошибки каталога не влияют на результат прогона: артефакты уже записаны
func (uc *RescaleUseCase) recordRunStart(ctx context.Context, run *domain.RunResult) {
	if uc.store == nil {
		return
	}
	if err := uc.store.CreateRun(ctx, run.RunID, run.StartedAt); err != nil {
		uc.logger.Warn("Failed to record run start", zap.String("run_id", run.RunID), zap.Error(err))
	}
}

func (uc *RescaleUseCase) recordIndicator(ctx context.Context, runID string, result domain.IndicatorResult) {
	if uc.store == nil {
		return
	}
	if err := uc.store.FinishIndicator(context.WithoutCancel(ctx), runID, result); err != nil {
		uc.logger.Warn("Failed to record indicator result",
			zap.String("run_id", runID),
			zap.String("indicator", result.Indicator),
			zap.Error(err))
		return
	}
	uc.invalidateResults(ctx, runID, result.Indicator)
}

func (uc *RescaleUseCase) invalidateResults(ctx context.Context, runID, indicator string) {
	if uc.cache == nil {
		return
	}
	keys := make([]string, 0, len(uc.kinds)+1)
	for _, kc := range uc.kinds {
		keys = append(keys, summariesCacheKey(runID, indicator, kc.Kind))
	}
	keys = append(keys, accuracyCacheKey(runID, indicator))
	if err := uc.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		uc.logger.Warn("Failed to invalidate cached results",
			zap.String("run_id", runID),
			zap.String("indicator", indicator),
			zap.Error(err))
	}
}

func (uc *RescaleUseCase) recordRunFinish(ctx context.Context, run *domain.RunResult) {
	if uc.store == nil {
		return
	}
	if err := uc.store.FinishRun(context.WithoutCancel(ctx), run.RunID, run.Status, *run.FinishedAt); err != nil {
		uc.logger.Warn("Failed to record run finish", zap.String("run_id", run.RunID), zap.Error(err))
	}
}

func dedupe(indicators []string) []string {
	seen := make(map[string]struct{}, len(indicators))
	out := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if _, ok := seen[ind]; ok {
			continue
		}
		seen[ind] = struct{}{}
		out = append(out, ind)
	}
	return out
}

func errUnknownKind(kind domain.UnitKind) error {
	return errors.Wrapf(errors.ErrInvalidConfig, "unit kind %q is not configured", kind)
}
