package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/studysmart/lesson-engine/internal/curriculum"
	"github.com/studysmart/lesson-engine/internal/domain"
	"github.com/studysmart/lesson-engine/internal/observability"
	"github.com/studysmart/lesson-engine/internal/progress"
	"github.com/studysmart/lesson-engine/internal/store"
	"go.uber.org/zap"
)

type fakeSource struct {
	loadFn            func() (*curriculum.Directive, []curriculum.Mapping, error)
	reloadDirectiveFn func() (*curriculum.Directive, error)
	reloadMappingFn   func(filename string) (*curriculum.Mapping, error)
}

func (f *fakeSource) Load() (*curriculum.Directive, []curriculum.Mapping, error) {
	return f.loadFn()
}

func (f *fakeSource) ReloadDirective() (*curriculum.Directive, error) {
	if f.reloadDirectiveFn != nil {
		return f.reloadDirectiveFn()
	}
	return nil, errors.New("no directive")
}

func (f *fakeSource) ReloadMapping(filename string) (*curriculum.Mapping, error) {
	if f.reloadMappingFn != nil {
		return f.reloadMappingFn(filename)
	}
	return nil, errors.New("no mapping")
}

type fakeGenerator struct {
	generateFn func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
	return f.generateFn(ctx, lesson, directive, requiredParts)
}

type fakeSink struct {
	writtenLessons []store.LessonFile
	summaries      []domain.BatchProgress
	writeLessonErr error
}

func (f *fakeSink) MappingDir(mappingFilename string) (string, error) {
	return "/out/" + strings.TrimSuffix(mappingFilename, ".json"), nil
}

func (f *fakeSink) WriteLesson(dir string, record store.LessonFile) (string, error) {
	if f.writeLessonErr != nil {
		return "", f.writeLessonErr
	}
	f.writtenLessons = append(f.writtenLessons, record)
	return dir + "/" + record.LessonID + "_complete.json", nil
}

func (f *fakeSink) WriteSummary(progress domain.BatchProgress) error {
	f.summaries = append(f.summaries, progress)
	return nil
}

type fakeSampler struct {
	sampleFn func() (observability.ResourceUsage, error)
}

func (f *fakeSampler) Sample() (observability.ResourceUsage, error) {
	return f.sampleFn()
}

type fakeLimiter struct {
	waits int
}

func (f *fakeLimiter) Allow(ctx context.Context, resource string) (bool, error) {
	return true, nil
}

func (f *fakeLimiter) Wait(ctx context.Context, resource string) error {
	f.waits++
	return nil
}

func lessons(n int) []domain.LessonRecord {
	out := make([]domain.LessonRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.LessonRecord{
			"Subject":       "Science",
			"Grade":         "Grade 3",
			"Lesson Number": fmt.Sprintf("L%d", i+1),
		})
	}
	return out
}

func goodContent() *domain.GeneratedContent {
	return &domain.GeneratedContent{
		ScriptParts:    []domain.ScriptPart{{Heading: "Hook", Content: "x"}},
		NotesExercises: "notes",
	}
}

func newTestCoordinator(t *testing.T, source CurriculumSource, gen ContentGenerator, sink LessonSink, limiter *fakeLimiter) (*Coordinator, *progress.Tracker) {
	t.Helper()

	tracker := progress.NewTracker()
	c, err := New(source, gen, sink, tracker, limiter, Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c, tracker
}

func TestRunProcessesAllMappings(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{
				{Filename: "a.json", Lessons: lessons(3)},
				{Filename: "b.json", Lessons: lessons(2)},
				{Filename: "c.json", Lessons: lessons(1)},
			}, nil
		},
	}

	failed := map[string]bool{"L2": true}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			if requiredParts != domain.LowerPartCount {
				t.Errorf("requiredParts = %d, want %d", requiredParts, domain.LowerPartCount)
			}
			if failed[lesson["Lesson Number"]] {
				return nil, errors.New("generation failed")
			}
			return goodContent(), nil
		},
	}

	sink := &fakeSink{}
	limiter := &fakeLimiter{}
	c, tracker := newTestCoordinator(t, source, gen, sink, limiter)

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	snap := tracker.Snapshot()
	if snap.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	// L2 appears in mappings a and b, so two failures.
	if snap.LessonsGenerated != 4 || snap.LessonsFailed != 2 {
		t.Fatalf("counters = (%d, %d), want (4, 2)", snap.LessonsGenerated, snap.LessonsFailed)
	}
	if len(snap.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(snap.Results))
	}
	for _, r := range snap.Results {
		if r.Successful+r.Failed != r.Total {
			t.Fatalf("result %s: %d + %d != %d", r.Filename, r.Successful, r.Failed, r.Total)
		}
	}
	if len(sink.summaries) != 1 {
		t.Fatalf("summaries written = %d, want 1", len(sink.summaries))
	}
	if limiter.waits != 6 {
		t.Fatalf("limiter waits = %d, want one per lesson", limiter.waits)
	}
}

func TestRunHonorsMappingAndLessonLimits(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{
				{Filename: "a.json", Lessons: lessons(5)},
				{Filename: "b.json", Lessons: lessons(5)},
				{Filename: "c.json", Lessons: lessons(5)},
			}, nil
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			return goodContent(), nil
		},
	}

	sink := &fakeSink{}
	c, tracker := newTestCoordinator(t, source, gen, sink, &fakeLimiter{})

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 2, 3)

	snap := tracker.Snapshot()
	if snap.LessonsGenerated != 6 {
		t.Fatalf("lessons generated = %d, want 2 mappings x 3 lessons", snap.LessonsGenerated)
	}
	if len(snap.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(snap.Results))
	}
}

func TestRunStopsAtDeadline(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{
				{Filename: "a.json", Lessons: lessons(5)},
				{Filename: "b.json", Lessons: lessons(5)},
			}, nil
		},
	}

	generated := 0
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			generated++
			return goodContent(), nil
		},
	}

	sink := &fakeSink{}
	c, tracker := newTestCoordinator(t, source, gen, sink, &fakeLimiter{})

	start := time.Now()
	// The clock jumps past the runtime budget after two lessons.
	c.now = func() time.Time {
		if generated >= 2 {
			return start.Add(c.cfg.MaxRuntime + time.Second)
		}
		return start
	}

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	snap := tracker.Snapshot()
	if snap.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed (partial)", snap.Status)
	}
	if snap.LessonsGenerated != 2 {
		t.Fatalf("lessons generated = %d, want 2", snap.LessonsGenerated)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("results = %d, want only the interrupted mapping", len(snap.Results))
	}
	r := snap.Results[0]
	if r.Successful+r.Failed != r.Total {
		t.Fatalf("interrupted result %d + %d != %d", r.Successful, r.Failed, r.Total)
	}
	if len(sink.summaries) != 1 {
		t.Fatal("a deadline-stopped run must still write its summary")
	}
}

func TestRunFailsWhenStoreIsEmpty(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, nil, fmt.Errorf("%w in curriculum", domain.ErrNoMappings)
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			t.Fatal("generator must not be called")
			return nil, nil
		},
	}

	sink := &fakeSink{}
	c, tracker := newTestCoordinator(t, source, gen, sink, &fakeLimiter{})

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	snap := tracker.Snapshot()
	if snap.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", snap.Status)
	}
	if len(sink.summaries) != 0 {
		t.Fatal("a failed load must not write a summary")
	}
}

func TestRunCountsPersistFailures(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{{Filename: "a.json", Lessons: lessons(2)}}, nil
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			return goodContent(), nil
		},
	}

	sink := &fakeSink{writeLessonErr: errors.New("disk full")}
	c, tracker := newTestCoordinator(t, source, gen, sink, &fakeLimiter{})

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	snap := tracker.Snapshot()
	if snap.LessonsFailed != 2 || snap.LessonsGenerated != 0 {
		t.Fatalf("counters = (%d, %d), want all failed", snap.LessonsGenerated, snap.LessonsFailed)
	}
}

func TestRunPicksUpReloadedLessonData(t *testing.T) {
	t.Parallel()

	var seenTopics []string
	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			stale := []domain.LessonRecord{{"Topic": "stale", "Grade": "Grade 3"}}
			return nil, []curriculum.Mapping{{Filename: "a.json", Lessons: stale}}, nil
		},
		reloadMappingFn: func(filename string) (*curriculum.Mapping, error) {
			return &curriculum.Mapping{
				Filename: filename,
				Lessons:  []domain.LessonRecord{{"Topic": "fresh", "Grade": "Grade 3"}},
			}, nil
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			seenTopics = append(seenTopics, lesson["Topic"])
			return goodContent(), nil
		},
	}

	c, tracker := newTestCoordinator(t, source, gen, &fakeSink{}, &fakeLimiter{})

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	if len(seenTopics) != 1 || seenTopics[0] != "fresh" {
		t.Fatalf("generator saw topics %v, want the reloaded row", seenTopics)
	}
}

func TestRunSamplesResourcesEveryTenLessons(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{{Filename: "a.json", Lessons: lessons(25)}}, nil
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			return goodContent(), nil
		},
	}

	samples := 0
	sampler := &fakeSampler{
		sampleFn: func() (observability.ResourceUsage, error) {
			samples++
			if samples == 1 {
				return observability.ResourceUsage{CPUPercent: 91.2, MemoryPercent: 40}, nil
			}
			return observability.ResourceUsage{CPUPercent: 35.0, MemoryPercent: 40}, nil
		},
	}

	var slept []time.Duration
	c, tracker := newTestCoordinator(t, source, gen, &fakeSink{}, &fakeLimiter{})
	c.SetSampler(sampler)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	if samples != 2 {
		t.Fatalf("samples = %d, want one at lesson 10 and one at lesson 20", samples)
	}
	// Only the first sample breaches the high-water mark.
	if len(slept) != 1 || slept[0] != c.cfg.CPUPause {
		t.Fatalf("pauses = %v, want one %v pause", slept, c.cfg.CPUPause)
	}
	if got := tracker.Snapshot().LessonsGenerated; got != 25 {
		t.Fatalf("lessons generated = %d, want 25", got)
	}
}

func TestRunContinuesWhenSamplingFails(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{{Filename: "a.json", Lessons: lessons(12)}}, nil
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			return goodContent(), nil
		},
	}
	sampler := &fakeSampler{
		sampleFn: func() (observability.ResourceUsage, error) {
			return observability.ResourceUsage{}, errors.New("proc unavailable")
		},
	}

	var slept []time.Duration
	c, tracker := newTestCoordinator(t, source, gen, &fakeSink{}, &fakeLimiter{})
	c.SetSampler(sampler)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c.run(context.Background(), "run-1", 0, 0)

	snap := tracker.Snapshot()
	if snap.Status != domain.StatusCompleted || snap.LessonsGenerated != 12 {
		t.Fatalf("run = (%s, %d lessons), want a completed 12-lesson run", snap.Status, snap.LessonsGenerated)
	}
	if len(slept) != 0 {
		t.Fatalf("pauses = %v, want none on sampling failure", slept)
	}
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		loadFn: func() (*curriculum.Directive, []curriculum.Mapping, error) {
			return nil, []curriculum.Mapping{{Filename: "a.json", Lessons: lessons(1)}}, nil
		},
	}
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, lesson domain.LessonRecord, directive *curriculum.Directive, requiredParts int) (*domain.GeneratedContent, error) {
			return goodContent(), nil
		},
	}

	c, tracker := newTestCoordinator(t, source, gen, &fakeSink{}, &fakeLimiter{})

	// Occupy the tracker as a run in flight.
	if err := tracker.Begin("run-1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if _, err := c.Start(0, 0); !errors.Is(err, domain.ErrBatchRunning) {
		t.Fatalf("Start() while processing error = %v, want ErrBatchRunning", err)
	}
}
