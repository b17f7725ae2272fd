// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package analyzer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"

	"github.com/goccy/go-json"
)

// ProbeResult is the subset of ffprobe's stream metadata the analyzer
// validates and persists.
type ProbeResult struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	Codec           string
}

// Extractor runs the external metadata probe (ffprobe by default).
type Extractor interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// PeakExtractor runs the external waveform sampler (ffmpeg by default),
// returning count normalized samples in [-1, 1].
type PeakExtractor interface {
	ExtractPeaks(ctx context.Context, path string, count int) ([]float64, error)
}

// FFProbeExtractor shells out to an ffprobe-compatible binary.
type FFProbeExtractor struct {
	BinPath string
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe runs `ffprobe -print_format json -show_format -show_streams` and
// parses the first audio stream.
func (f *FFProbeExtractor) Probe(ctx context.Context, path string) (ProbeResult, error) {
	bin := f.BinPath
	if bin == "" {
		bin = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, bin, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ProbeResult{}, fmt.Errorf("analyzer: ffprobe: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return ProbeResult{}, fmt.Errorf("analyzer: parse ffprobe output: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(parsed.Format.Duration, "%f", &duration); err != nil {
		return ProbeResult{}, fmt.Errorf("analyzer: parse duration %q: %w", parsed.Format.Duration, err)
	}

	for _, stream := range parsed.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		var sampleRate int
		_, _ = fmt.Sscanf(stream.SampleRate, "%d", &sampleRate)
		return ProbeResult{
			DurationSeconds: duration,
			SampleRate:      sampleRate,
			Channels:        stream.Channels,
			Codec:           stream.CodecName,
		}, nil
	}

	return ProbeResult{}, fmt.Errorf("analyzer: no audio stream in ffprobe output")
}

// FFMpegPeakExtractor shells out to an ffmpeg-compatible binary, decoding
// to raw mono PCM and reducing it to a bucketed peak array in Go.
type FFMpegPeakExtractor struct {
	BinPath string
}

const peakSampleRate = 8000

// ExtractPeaks decodes path to 8kHz mono s16le PCM on stdout and reduces
// it to count buckets, each the max absolute sample in that bucket
// normalized to [-1, 1].
func (f *FFMpegPeakExtractor) ExtractPeaks(ctx context.Context, path string, count int) ([]float64, error) {
	bin := f.BinPath
	if bin == "" {
		bin = "ffmpeg"
	}
	if count <= 0 {
		count = 1000
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-i", path,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", peakSampleRate),
		"-f", "s16le",
		"-",
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("analyzer: ffmpeg: %w", err)
	}

	pcm := stdout.Bytes()
	samples := len(pcm) / 2
	if samples == 0 {
		return make([]float64, count), nil
	}

	peaks := make([]float64, count)
	bucketSize := samples / count
	if bucketSize == 0 {
		bucketSize = 1
	}
	for i := 0; i < count; i++ {
		start := i * bucketSize
		end := start + bucketSize
		if start >= samples {
			break
		}
		if end > samples {
			end = samples
		}
		var peak int32
		for s := start; s < end; s++ {
			v := int32(int16(binary.LittleEndian.Uint16(pcm[2*s : 2*s+2])))
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		peaks[i] = float64(peak) / 32768.0
	}
	return peaks, nil
}
