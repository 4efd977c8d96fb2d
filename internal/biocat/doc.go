// Package biocat is the client for the Watercryst BIOCAT cloud REST API.
//
// The package has three layers:
//
//  1. Endpoint catalog: logical Operation names mapped to HTTP bindings.
//     Nothing outside the Transport touches paths or verbs.
//  2. Transport: authenticated request execution with per-call timeouts
//     and a typed error taxonomy (ErrUnauthorized, ErrTimeout, ...).
//     The Transport never retries; retry policy lives in the coordinator.
//  3. Normalization: Merge() folds the raw response bodies of one fetch
//     cycle into an immutable Snapshot, tolerating missing keys, absent
//     bodies and firmware-dependent response shapes.
//
// The API key is held only by the Transport and is never included in
// errors or log output.
package biocat
