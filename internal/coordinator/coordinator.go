// Package coordinator runs the sequential batch loop: one background
// goroutine walks mappings and lessons in order, drives the generator,
// persists results, and publishes progress through the shared tracker.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/studysmart/lesson-engine/internal/curriculum"
	"github.com/studysmart/lesson-engine/internal/domain"
	"github.com/studysmart/lesson-engine/internal/observability"
	"github.com/studysmart/lesson-engine/internal/progress"
	"github.com/studysmart/lesson-engine/internal/ratelimit"
	"github.com/studysmart/lesson-engine/internal/repository"
	"github.com/studysmart/lesson-engine/internal/store"
	"go.uber.org/zap"
)

const (
	defaultMaxRuntime     = 7200 * time.Second
	defaultSampleEvery    = 10
	defaultCPUHighWater   = 85.0
	defaultCPUPause       = 30 * time.Second
	completionResourceKey = "completions"
)

// CurriculumSource loads mappings and the directive, with per-lesson
// reloads for mid-run freshness.
type CurriculumSource interface {
	Load() (*curriculum.Directive, []curriculum.Mapping, error)
	ReloadDirective() (*curriculum.Directive, error)
	ReloadMapping(filename string) (*curriculum.Mapping, error)
}

// ContentGenerator produces validated content for one lesson.
type ContentGenerator interface {
	Generate(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error)
}

// LessonSink persists validated lessons and the batch summary.
type LessonSink interface {
	MappingDir(mappingFilename string) (string, error)
	WriteLesson(dir string, record store.LessonFile) (string, error)
	WriteSummary(progress domain.BatchProgress) error
}

// ResourceSampler reads host CPU and memory usage for the periodic
// load-shedding check.
type ResourceSampler interface {
	Sample() (observability.ResourceUsage, error)
}

// Config bounds one batch run.
type Config struct {
	MaxRuntime   time.Duration
	SampleEvery  int
	CPUHighWater float64
	CPUPause     time.Duration
}

// Coordinator owns the batch loop. At most one run executes at a time;
// concurrent starts are rejected by the tracker's status machine.
type Coordinator struct {
	source    CurriculumSource
	generator ContentGenerator
	sink      LessonSink
	tracker   *progress.Tracker
	limiter   ratelimit.RateLimiter
	sampler   ResourceSampler
	archive   repository.RunArchive
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(
	source CurriculumSource,
	generator ContentGenerator,
	sink LessonSink,
	tracker *progress.Tracker,
	limiter ratelimit.RateLimiter,
	cfg Config,
	logger *zap.Logger,
) (*Coordinator, error) {
	if source == nil {
		return nil, fmt.Errorf("curriculum source is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("content generator is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("lesson sink is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("progress tracker is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = defaultMaxRuntime
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = defaultSampleEvery
	}
	if cfg.CPUHighWater <= 0 {
		cfg.CPUHighWater = defaultCPUHighWater
	}
	if cfg.CPUPause <= 0 {
		cfg.CPUPause = defaultCPUPause
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		source:    source,
		generator: generator,
		sink:      sink,
		tracker:   tracker,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepWithContext,
	}, nil
}

// SetSampler installs the optional resource sampler.
func (c *Coordinator) SetSampler(sampler ResourceSampler) {
	if c == nil {
		return
	}
	c.sampler = sampler
}

// SetArchive installs the optional run archive.
func (c *Coordinator) SetArchive(archive repository.RunArchive) {
	if c == nil {
		return
	}
	c.archive = archive
}

func (c *Coordinator) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Start arms the tracker and launches the batch loop in the background.
// It returns domain.ErrBatchRunning while a run is processing. The HTTP
// layer never blocks on the run; it only reads the published state.
func (c *Coordinator) Start(maxMappings, maxLessonsPerMapping int) (string, error) {
	runID := uuid.NewString()
	if err := c.tracker.Begin(runID); err != nil {
		return "", err
	}

	go c.run(context.Background(), runID, maxMappings, maxLessonsPerMapping)
	return runID, nil
}

func (c *Coordinator) run(ctx context.Context, runID string, maxMappings, maxLessonsPerMapping int) {
	logger := observability.WithRun(c.logger, runID)
	c.metrics.SetBatchRunning(true)
	defer c.metrics.SetBatchRunning(false)

	if c.archive != nil {
		if err := c.archive.CreateRun(ctx, c.tracker.Snapshot()); err != nil {
			logger.Error("failed to archive run start", zap.Error(err))
		}
	}

	directive, mappings, err := c.source.Load()
	if err != nil {
		logger.Error("failed to load curriculum store", zap.Error(err))
		c.tracker.Fail()
		c.finishArchive(ctx, logger)
		return
	}
	if maxMappings > 0 && len(mappings) > maxMappings {
		mappings = mappings[:maxMappings]
	}

	logger.Info("batch started",
		zap.Int("mappings", len(mappings)),
		zap.Int("maxLessonsPerMapping", maxLessonsPerMapping),
	)

	deadline := c.tracker.StartedAt().Add(c.cfg.MaxRuntime)

	for _, mapping := range mappings {
		result, stopped := c.processMapping(ctx, logger, runID, directive, mapping, maxLessonsPerMapping, deadline)
		c.tracker.AddResult(result)
		if stopped {
			logger.Warn("runtime budget reached, stopping batch early")
			break
		}
	}

	// An early stop is a graceful completion with partial results.
	c.tracker.Complete()
	snapshot := c.tracker.Snapshot()

	if err := c.sink.WriteSummary(snapshot); err != nil {
		logger.Error("failed to write batch summary", zap.Error(err))
	}
	c.finishArchive(ctx, logger)

	logger.Info("batch completed",
		zap.Int("lessonsGenerated", snapshot.LessonsGenerated),
		zap.Int("lessonsFailed", snapshot.LessonsFailed),
		zap.Float64("runtimeSeconds", snapshot.RuntimeSeconds),
	)
}

// processMapping walks one mapping's lessons in file order. The returned
// stop flag aborts the whole run, set only by the global deadline or
// context cancellation; a failed lesson never aborts anything.
func (c *Coordinator) processMapping(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	directive *curriculum.Directive,
	mapping curriculum.Mapping,
	maxLessons int,
	deadline time.Time,
) (domain.MappingResult, bool) {
	lessons := mapping.Lessons
	if maxLessons > 0 && len(lessons) > maxLessons {
		lessons = lessons[:maxLessons]
	}

	result := domain.MappingResult{
		Filename: mapping.Filename,
		Total:    len(lessons),
	}

	outDir, err := c.sink.MappingDir(mapping.Filename)
	if err != nil {
		logger.Error("failed to create mapping output directory",
			zap.String("mapping", mapping.Filename),
			zap.Error(err),
		)
		for range lessons {
			result.Failed++
			c.tracker.RecordFailure()
			c.metrics.IncLessonFailed()
		}
		return result, false
	}
	result.OutputDir = outDir

	for i := range lessons {
		if !c.now().Before(deadline) || ctx.Err() != nil {
			// Only the attempted lessons count toward the mapping total.
			result.Total = result.Successful + result.Failed
			return result, true
		}

		if c.sampler != nil && i > 0 && i%c.cfg.SampleEvery == 0 {
			c.checkResources(ctx, logger)
		}

		lesson := lessons[i]
		lessonID := lesson.LessonID(i + 1)
		llog := observability.WithLesson(logger, mapping.Filename, lessonID)

		directive, lesson = c.refresh(llog, directive, mapping.Filename, i, lesson)
		requiredParts := domain.RequiredPartCount(lesson)

		llog.Info("generating lesson",
			zap.Int("position", i+1),
			zap.Int("total", len(lessons)),
			zap.Int("requiredParts", requiredParts),
		)

		content, err := c.generator.Generate(ctx, lesson, directive, requiredParts)
		switch {
		case err != nil:
			llog.Warn("lesson generation failed", zap.Error(err))
			c.recordFailure(ctx, &result, runID, mapping.Filename, lessonID, err.Error())

		default:
			record := store.LessonFile{
				LessonID:     lessonID,
				BaseFilename: lesson.BaseFilename(i + 1),
				LessonData:   lesson,
				Content:      *content,
			}
			path, werr := c.sink.WriteLesson(outDir, record)
			if werr != nil {
				llog.Error("failed to persist lesson", zap.Error(werr))
				c.recordFailure(ctx, &result, runID, mapping.Filename, lessonID, werr.Error())
				break
			}

			llog.Info("lesson persisted", zap.String("path", path))
			result.Successful++
			c.tracker.RecordSuccess()
			c.metrics.IncLessonGenerated()
			c.recordLesson(ctx, runID, mapping.Filename, lessonID, true, path)
		}

		// Inter-request pacing toward the completion service.
		if err := c.limiter.Wait(ctx, completionResourceKey); err != nil {
			if ctx.Err() != nil {
				result.Total = result.Successful + result.Failed
				return result, true
			}
			logger.Warn("rate limiter wait failed", zap.Error(err))
		}
	}

	return result, false
}

// refresh re-reads the directive and the current mapping row so external
// edits are picked up mid-run. Read failures fall back to the copies
// loaded at batch start.
func (c *Coordinator) refresh(
	logger *zap.Logger,
	directive *curriculum.Directive,
	mappingFilename string,
	index int,
	lesson domain.LessonRecord,
) (*curriculum.Directive, domain.LessonRecord) {
	if d, err := c.source.ReloadDirective(); err == nil {
		directive = d
	} else {
		logger.Debug("directive reload failed, using cached copy", zap.Error(err))
	}

	if m, err := c.source.ReloadMapping(mappingFilename); err == nil && index < len(m.Lessons) {
		lesson = m.Lessons[index]
	} else if err != nil {
		logger.Debug("mapping reload failed, using cached row", zap.Error(err))
	}

	return directive, lesson
}

func (c *Coordinator) checkResources(ctx context.Context, logger *zap.Logger) {
	usage, err := c.sampler.Sample()
	if err != nil {
		logger.Warn("resource sampling failed", zap.Error(err))
		return
	}

	logger.Info("resource usage",
		zap.Float64("cpuPercent", usage.CPUPercent),
		zap.Float64("memoryPercent", usage.MemoryPercent),
	)

	if usage.CPUPercent > c.cfg.CPUHighWater {
		logger.Warn("high cpu usage, pausing briefly",
			zap.Float64("cpuPercent", usage.CPUPercent),
			zap.Duration("pause", c.cfg.CPUPause),
		)
		if err := c.sleep(ctx, c.cfg.CPUPause); err != nil {
			logger.Warn("cpu pause interrupted", zap.Error(err))
		}
	}
}

func (c *Coordinator) recordFailure(ctx context.Context, result *domain.MappingResult, runID, mapping, lessonID, detail string) {
	result.Failed++
	c.tracker.RecordFailure()
	c.metrics.IncLessonFailed()
	c.recordLesson(ctx, runID, mapping, lessonID, false, detail)
}

func (c *Coordinator) recordLesson(ctx context.Context, runID, mapping, lessonID string, success bool, detail string) {
	if c.archive == nil {
		return
	}
	if err := c.archive.RecordLesson(ctx, runID, mapping, lessonID, success, detail); err != nil {
		c.logger.Warn("failed to archive lesson result",
			zap.String("lessonId", lessonID),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) finishArchive(ctx context.Context, logger *zap.Logger) {
	if c.archive == nil {
		return
	}
	if err := c.archive.FinishRun(ctx, c.tracker.Snapshot()); err != nil {
		logger.Error("failed to archive run result", zap.Error(err))
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
