package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/faceservice"
	"github.com/kozaktomas/face-attendance/internal/video"
)

// appDeps holds the initialized services shared by the commands.
type appDeps struct {
	cfg     *config.Config
	pool    *postgres.Pool
	store   *postgres.Store
	face    *faceservice.Client
	builder *facematch.RegistryBuilder
	sampler *video.Sampler
	manager *attendance.Manager
}

// initAppDeps connects to PostgreSQL and wires the recognition pipeline.
func initAppDeps(ctx context.Context, cfg *config.Config) (*appDeps, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	comparator, err := facematch.NewComparator(cfg.Recognition.Metric, cfg.Recognition.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("invalid recognition settings: %w", err)
	}

	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	store := postgres.NewStore(pool)

	face := faceservice.NewClient(cfg.FaceService.URL, cfg.FaceService.Timeout)
	matcher := facematch.NewMatcher(face, face, comparator, cfg.Recognition.FrameScale)

	builder := &facematch.RegistryBuilder{
		Detector: face,
		Embedder: face,
		ImageDir: cfg.Storage.StudentImageDir,
	}
	if cfg.Recognition.CacheEmbedding {
		builder.Cache = database.ReferenceCache{Backend: store, Model: cfg.Recognition.EmbeddingModel}
	}

	ffmpeg := video.FFmpeg{FFmpegPath: cfg.Storage.FFmpegPath, FFprobePath: cfg.Storage.FFprobePath}
	sampler := video.NewSampler(matcher, ffmpeg.Open, cfg.Recognition.SampleInterval)

	manager := attendance.NewManager(attendance.ManagerDeps{
		Bouts:   store,
		Roster:  store,
		Builder: builder,
		Matcher: matcher,
		Sampler: sampler,
		Ledger:  attendance.NewLedger(store),
		Hub:     attendance.NewHub(),
	})

	return &appDeps{
		cfg:     cfg,
		pool:    pool,
		store:   store,
		face:    face,
		builder: builder,
		sampler: sampler,
		manager: manager,
	}, nil
}

// Close releases the database pool.
func (d *appDeps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// rosterOf snapshots the enrolled students of a class as registry input.
func rosterOf(ctx context.Context, roster database.RosterReader, classID int64) ([]facematch.RosterEntry, error) {
	students, err := roster.GetEnrolledStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster for class %d: %w", classID, err)
	}
	entries := make([]facematch.RosterEntry, len(students))
	for i, s := range students {
		entries[i] = facematch.RosterEntry{StudentID: s.ID, Name: s.Name, ImagePath: s.ImagePath}
	}
	return entries, nil
}
