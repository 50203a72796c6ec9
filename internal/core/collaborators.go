package core

import "context"

// Storage is the object-storage collaborator. Keys are full object names
// composed as prefix + "/" + sub-path.
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string) ([]byte, error)
	PresignUpload(ctx context.Context, prefix string, c UploadConstraints) (*UploadTarget, error)
	// DeletePrefix removes every object under prefix. Best effort.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Broker is the durable queue collaborator. Publish must enqueue at most
// once per dedupKey; a duplicate publish returns nil.
type Broker interface {
	Publish(ctx context.Context, subject string, payload []byte, dedupKey string) error
	Connected(ctx context.Context) bool
}

// KVStore is the progress snapshot store. Get returns nil, nil when the key
// is absent.
type KVStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// DatasetRepository persists Dataset records.
//
// Get and UpdateDetails return nil, nil when the id is unknown.
// TransitionStatus is a compare-and-set on status and reports false when the
// current status is not from. SaveOutcome applies only while the dataset is
// validating, so a late write after deletion reports false and changes nothing.
type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) error
	Get(ctx context.Context, id string) (*Dataset, error)
	List(ctx context.Context, f ListFilter, p Pagination) (*DatasetList, error)
	UpdateDetails(ctx context.Context, id string, patch DatasetPatch) (*Dataset, error)
	TransitionStatus(ctx context.Context, id string, from, to DatasetStatus) (bool, error)
	SaveOutcome(ctx context.Context, id string, o ValidationOutcome) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReferenceChecker answers existence-only lookups for referenced entities.
type ReferenceChecker interface {
	RobotTypeExists(ctx context.Context, id string) (bool, error)
	SkillExists(ctx context.Context, id string) (bool, error)
}
