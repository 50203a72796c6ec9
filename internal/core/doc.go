// Package core provides dataset ingestion, validation, and quality scoring
// for robot-learning training data.
//
// The package has no transport dependencies. Collaborators (object storage,
// durable broker, progress KV store, registry persistence, reference checks)
// are interfaces declared in collaborators.go and injected through [Deps].
//
// # Lifecycle
//
// A dataset moves through exactly one path:
//
//	uploading -> validating -> ready
//	                        -> failed
//
//  1. [Service.Create] registers the dataset in uploading.
//  2. [Service.InitiateUpload] issues a prefix-scoped write reference.
//  3. The client uploads the tree straight to storage.
//  4. [Service.CompleteUpload] moves it to validating and dispatches a job.
//  5. [Service.ValidateAndUpdate] validates, scores, and writes ready or failed.
//
// # Dispatch
//
// When the broker is reachable the job is published under a per-dataset
// dedup key and a worker runs step 5. Otherwise step 5 runs inline before
// CompleteUpload returns. Either way the dataset reaches a terminal state.
//
// # Validation and Scoring
//
// [StructureValidator] requires a manifest with codebase_version, robot_type,
// fps, and features and reports every missing field at once. The stats file
// and episode index are optional and only produce warnings.
//
// [QualityScorer] sums four components (demonstrations, duration, diversity,
// format compliance) into a 0-100 total. The breakdown is stored with the
// dataset.
//
// # Progress and Events
//
// Each checkpoint overwrites one snapshot per dataset in the KV store, read
// back through [Service.GetUploadProgress]. Every state change also publishes
// a [DatasetEvent] on the [EventBus] after it has been persisted.
//
// # Error Handling
//
// NotFound, InvalidState, and Unavailable are returned to the caller and can
// be tested with errors.Is. Validation failures and internal errors never
// reach the upload caller; they become dataset state. [MapError] turns any
// error into a user message with a support code (DS, VAL, STO, BRK, KV, ERR).
package core
