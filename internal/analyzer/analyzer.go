// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package analyzer implements the audio analyzer (C9): a bounded worker
// pool that probes an uploaded object with an external metadata/peak
// extractor and promotes the owning Track to Ready or Failed.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
)

const trackKind = "track"

// Failure reasons, closed set per spec.md §4.9.
const (
	ReasonDurationExceeded = "DurationExceeded"
	ReasonInvalidDuration  = "InvalidDuration"
	ReasonUnsupportedCodec = "UnsupportedCodec"
	ReasonCorruptedFile    = "CorruptedFile"
	ReasonFfprobeTimeout   = "FfprobeTimeout"
	ReasonFfmpegTimeout    = "FfmpegTimeout"
	ReasonStorageError     = "StorageError"
	ReasonUnknownError     = "UnknownError"
)

const (
	maxTrackDuration    = 2 * time.Hour
	maxPeakPayloadBytes = 100 * 1024
	minFreeScratchBytes = 2 << 30 // 2 GiB
	probeTimeoutDefault = 30 * time.Second
	peakTimeoutDefault  = 120 * time.Second
	maxVersionRetries   = 3
)

var recognizedCodecs = map[string]bool{
	"flac": true, "mp3": true, "aac": true, "vorbis": true,
	"opus": true, "pcm_s16le": true, "pcm_s24le": true, "alac": true,
}

// EventSource abstracts the bus subscription; shared shape with
// internal/ingest's EventSource so both packages can wrap
// eventprocessor.Subscriber the same way.
type EventSource interface {
	Run(ctx context.Context, handle func(ctx context.Context, event *eventprocessor.AudioEvent) error) error
}

type subscriberSource struct {
	sub   *eventprocessor.Subscriber
	topic string
}

// NewEventSource adapts a durable bus subscriber bound to topic into an
// EventSource.
func NewEventSource(sub *eventprocessor.Subscriber, topic string) EventSource {
	return &subscriberSource{sub: sub, topic: topic}
}

func (s *subscriberSource) Run(ctx context.Context, handle func(context.Context, *eventprocessor.AudioEvent) error) error {
	return s.sub.NewEventHandler(s.topic).Handle(handle).Run(ctx)
}

type retryableError struct{ cause error }

func (e *retryableError) Error() string { return e.cause.Error() }
func (e *retryableError) Unwrap() error { return e.cause }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{cause: err}
}

// Analyzer is the suture-supervised audio analysis pool.
type Analyzer struct {
	store   docstore.Store
	objects objectstore.Store
	probe   Extractor
	peaks   PeakExtractor
	source  EventSource
	cfg     config.AnalyzerConfig
	logger  zerolog.Logger

	wg sync.WaitGroup
}

// NewAnalyzer constructs an Analyzer. probe/peakExtractor default to
// FFProbeExtractor/FFMpegPeakExtractor wrapping cfg.FFProbePath/FFMpegPath
// when nil.
func NewAnalyzer(store docstore.Store, objects objectstore.Store, source EventSource, cfg config.AnalyzerConfig, probe Extractor, peakExtractor PeakExtractor) *Analyzer {
	if probe == nil {
		probe = &FFProbeExtractor{BinPath: cfg.FFProbePath}
	}
	if peakExtractor == nil {
		peakExtractor = &FFMpegPeakExtractor{BinPath: cfg.FFMpegPath}
	}
	return &Analyzer{
		store:   store,
		objects: objects,
		probe:   probe,
		peaks:   peakExtractor,
		source:  source,
		cfg:     cfg,
		logger:  logging.WithComponent("analyzer"),
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (a *Analyzer) String() string {
	return "analyzer.Analyzer"
}

// Serve implements suture.Service: cfg.WorkerCount parallel subscriptions
// against the analysis topic, each running handle per message. On
// cancellation it waits up to 60s for in-flight work before returning,
// per spec.md §4.9's graceful-shutdown contract.
func (a *Analyzer) Serve(ctx context.Context) error {
	workers := a.cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}

	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- a.source.Run(ctx, a.handle)
		}()
	}

	var first error
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil && first == nil && !errors.Is(err, context.Canceled) {
			first = err
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(60 * time.Second):
		a.logger.Warn().Msg("analyzer: graceful shutdown timed out waiting for in-flight work")
	}

	if first != nil {
		return first
	}
	return ctx.Err()
}

// handle implements spec.md §4.9 steps 1-7.
func (a *Analyzer) handle(ctx context.Context, event *eventprocessor.AudioEvent) error {
	a.wg.Add(1)
	defer a.wg.Done()

	var track models.Track
	version, err := a.store.Load(ctx, trackKind, event.TrackID, &track)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			a.logger.Warn().Str("track_id", event.TrackID).Msg("analyzer: track not found, orphan event")
			return nil
		}
		metrics.RecordIngestOutcome("analyzer_store_unavailable")
		return retryable(err)
	}
	if track.Status != models.TrackProcessing {
		return nil
	}

	scratchDir := a.cfg.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	if free, err := freeBytes(scratchDir); err == nil && free < minFreeScratchBytes {
		return retryable(fmt.Errorf("analyzer: insufficient scratch disk: %d bytes free", free))
	}

	tempDir, err := os.MkdirTemp(scratchDir, "cartographus-analyze-"+uuid.NewString())
	if err != nil {
		return retryable(fmt.Errorf("analyzer: create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, "source")
	if err := a.objects.DownloadToPath(ctx, event.ObjectKey, localPath); err != nil {
		metrics.RecordIngestOutcome("analyzer_store_unavailable")
		return retryable(err)
	}

	probeResult, err := a.runProbe(ctx, localPath)
	if err != nil {
		return a.fail(ctx, &track, version, classifyProbeFailure(err))
	}
	if reason := validateProbe(probeResult); reason != "" {
		return a.fail(ctx, &track, version, reason)
	}

	peakCount := a.cfg.PeakCount
	if peakCount <= 0 {
		peakCount = 1000
	}
	samples, err := a.runPeaks(ctx, localPath, peakCount)
	if err != nil {
		return a.fail(ctx, &track, version, classifyPeakFailure(err))
	}

	peakPayload, truncatedCount := encodePeaks(samples)
	waveformKey := fmt.Sprintf("waveforms/%s/%s/peaks.json", track.UserID, track.TrackID)
	peaksPath := filepath.Join(tempDir, "peaks.json")
	if err := os.WriteFile(peaksPath, peakPayload, 0o600); err != nil {
		metrics.RecordIngestOutcome("analyzer_store_unavailable")
		return retryable(fmt.Errorf("analyzer: write peaks scratch file: %w", err))
	}
	if err := a.objects.UploadFromPath(ctx, waveformKey, peaksPath, "application/json"); err != nil {
		metrics.RecordIngestOutcome("analyzer_store_unavailable")
		return retryable(err)
	}

	return a.commitReady(ctx, &track, version, probeResult, waveformKey, truncatedCount)
}

func (a *Analyzer) runProbe(ctx context.Context, path string) (ProbeResult, error) {
	timeout := a.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = probeTimeoutDefault
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, err := a.probe.Probe(pctx, path)
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		return ProbeResult{}, fmt.Errorf("%s: %w", ReasonFfprobeTimeout, pctx.Err())
	}
	return result, err
}

func (a *Analyzer) runPeaks(ctx context.Context, path string, count int) ([]float64, error) {
	pctx, cancel := context.WithTimeout(ctx, peakTimeoutDefault)
	defer cancel()
	samples, err := a.peaks.ExtractPeaks(pctx, path, count)
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s: %w", ReasonFfmpegTimeout, pctx.Err())
	}
	return samples, err
}

func validateProbe(r ProbeResult) string {
	if r.DurationSeconds <= 0 {
		return ReasonInvalidDuration
	}
	if r.DurationSeconds > maxTrackDuration.Seconds() {
		return ReasonDurationExceeded
	}
	if r.SampleRate <= 0 {
		return ReasonInvalidDuration
	}
	if r.Channels < 1 || r.Channels > 8 {
		return ReasonInvalidDuration
	}
	if !recognizedCodecs[r.Codec] {
		return ReasonUnsupportedCodec
	}
	return ""
}

func classifyProbeFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || containsReason(err, ReasonFfprobeTimeout):
		return ReasonFfprobeTimeout
	default:
		return ReasonCorruptedFile
	}
}

func classifyPeakFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || containsReason(err, ReasonFfmpegTimeout):
		return ReasonFfmpegTimeout
	default:
		return ReasonCorruptedFile
	}
}

func containsReason(err error, reason string) bool {
	return err != nil && len(err.Error()) >= len(reason) && err.Error()[:len(reason)] == reason
}

// encodePeaks serializes samples as a normalized JSON array, truncating
// the sample count if needed to stay within maxPeakPayloadBytes.
func encodePeaks(samples []float64) ([]byte, int) {
	payload, err := json.Marshal(samples)
	if err == nil && len(payload) <= maxPeakPayloadBytes {
		return payload, len(samples)
	}

	lo, hi := 0, len(samples)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		candidate, err := json.Marshal(samples[:mid])
		if err == nil && len(candidate) <= maxPeakPayloadBytes {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	truncated, _ := json.Marshal(samples[:lo])
	return truncated, lo
}

// fail sets the track Failed with reason and acks. Version-conflict on
// this path is not retried with reload: a lost race here means another
// worker already moved the track past Processing, so this event is stale
// and the ack is correct either way.
func (a *Analyzer) fail(ctx context.Context, track *models.Track, version int64, reason string) error {
	track.Status = models.TrackFailed
	track.FailureReason = reason
	track.UpdatedAt = time.Now()

	if err := a.store.Save(ctx, docstore.WriteOp{
		Kind:            trackKind,
		ID:              track.TrackID,
		ExpectedVersion: version,
		Value:           track,
		Indexes: []docstore.Index{
			{Name: "track-by-user-for-search", Key: track.UserID},
			{Name: "track-by-status-for-lifecycle", Key: string(track.Status)},
		},
	}); err != nil {
		var conflict *docstore.ErrConflict
		if !errors.As(err, &conflict) {
			metrics.RecordIngestOutcome("analyzer_store_unavailable")
			return retryable(err)
		}
		// Lost the race; whatever won already decided this track's fate.
	}
	metrics.RecordIngestOutcome("analyzer_failed_" + reason)
	return nil
}

// commitReady retries up to maxVersionRetries on an optimistic-concurrency
// conflict, reloading the track each time, per spec.md §4.9 step 6.
func (a *Analyzer) commitReady(ctx context.Context, track *models.Track, version int64, probe ProbeResult, waveformKey string, peakCount int) error {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		track.Metadata = &models.TrackMetadata{
			DurationSeconds: probe.DurationSeconds,
			SampleRate:      probe.SampleRate,
			Channels:        probe.Channels,
			Codec:           probe.Codec,
			PeakCount:       peakCount,
		}
		track.WaveformObjectKey = waveformKey
		track.Status = models.TrackReady
		track.UpdatedAt = time.Now()

		err := a.store.Save(ctx, docstore.WriteOp{
			Kind:            trackKind,
			ID:              track.TrackID,
			ExpectedVersion: version,
			Value:           track,
			Indexes: []docstore.Index{
				{Name: "track-by-user-for-search", Key: track.UserID},
				{Name: "track-by-status-for-lifecycle", Key: string(track.Status)},
			},
		})
		if err == nil {
			metrics.RecordIngestOutcome("analyzer_ready")
			return nil
		}

		var conflict *docstore.ErrConflict
		if !errors.As(err, &conflict) {
			metrics.RecordIngestOutcome("analyzer_store_unavailable")
			return retryable(err)
		}

		reloaded := models.Track{}
		newVersion, loadErr := a.store.Load(ctx, trackKind, track.TrackID, &reloaded)
		if loadErr != nil {
			metrics.RecordIngestOutcome("analyzer_store_unavailable")
			return retryable(loadErr)
		}
		if reloaded.Status != models.TrackProcessing {
			// Someone else already resolved this track; stale event, ack.
			return nil
		}
		*track = reloaded
		version = newVersion
	}
	return retryable(fmt.Errorf("analyzer: exhausted version retries for track %s", track.TrackID))
}

func freeBytes(dir string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
