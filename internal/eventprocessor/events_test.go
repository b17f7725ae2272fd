// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package eventprocessor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/eventprocessor"
)

func TestNewAudioEventStampsIdentity(t *testing.T) {
	event := eventprocessor.NewAudioEvent(eventprocessor.EventTrackReady)
	require.NotEmpty(t, event.EventID)
	require.Equal(t, eventprocessor.EventTrackReady, event.Kind)
	require.Equal(t, eventprocessor.SchemaVersion, event.SchemaVersion)
	require.False(t, event.Timestamp.IsZero())
	require.NoError(t, event.Validate())
}

func TestAudioEventValidateRequiresEventID(t *testing.T) {
	event := eventprocessor.NewAudioEvent(eventprocessor.EventTrackReady)
	event.EventID = ""
	require.Error(t, event.Validate())
}

func TestAudioEventValidateRequiresKind(t *testing.T) {
	event := eventprocessor.NewAudioEvent(eventprocessor.EventTrackReady)
	event.Kind = ""
	require.Error(t, event.Validate())
}

func TestEventKindTopicRouting(t *testing.T) {
	cases := []struct {
		kind eventprocessor.EventKind
		want string
	}{
		{eventprocessor.EventObjectCreated, "prod-minio-events"},
		{eventprocessor.EventTrackDeleted, "prod-track-deletions"},
		{eventprocessor.EventTrackPurged, "prod-track-deletions"},
		{eventprocessor.EventPlayback, "prod-telemetry-events"},
		{eventprocessor.EventTrackReady, "prod-audio-events"},
		{eventprocessor.EventUploadCompleted, "prod-audio-events"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.kind.Topic("prod"))
	}
}
