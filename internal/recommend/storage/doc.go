// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package storage persists versioned snapshots of derived recommendation
// state, currently the similarity index, so a restarted process can serve
// content candidates before the first index refresh completes.
//
// # Storage Format
//
// Each snapshot is a gob-encoded file holding metadata and a gzip-compressed,
// gob-encoded payload:
//
//	filename: {name}_v{version}.gob.gz
//
//	structure:
//	  - Metadata (SnapshotMetadata)
//	  - CompressedData (gzip-compressed gob payload)
//
// Files are written to a temporary name and renamed into place, so a crash
// mid-save leaves the previous version intact.
//
// # Data Integrity
//
// The SHA-256 of the uncompressed payload is stored in the metadata and
// verified on load. A mismatch fails the load; callers then rebuild from
// the document store.
//
// # Usage Example
//
//	store, err := storage.NewStore("/data/snapshots")
//	if err != nil {
//	    return err
//	}
//
//	state := storage.IndexState{Entries: entries, ModelVersion: "v1"}
//	version := store.NextVersion(storage.IndexSnapshotName)
//	err = store.Save(ctx, storage.IndexSnapshotName, version, state, storage.SnapshotMetadata{
//	    ItemCount: len(entries),
//	})
//
//	var loaded storage.IndexState
//	meta, err := store.Load(ctx, storage.IndexSnapshotName, 0, &loaded) // 0 = latest
//
// # Thread Safety
//
// All store operations are safe for concurrent use. Saves are serialized;
// loads run concurrently.
package storage
