// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package objectstore is the object store gateway (C2): presigned PUT/GET
// URL issuance, direct upload/download helpers for worker use, and bucket
// provisioning at startup. It wraps a MinIO client so the audio bytes
// themselves never pass through this process's memory on the common path.
package objectstore
