package persistence

import "context"

// Collection names persisted by the service. Each collection is a single
// JSON document replaced wholesale on every save.
const (
	CollectionSettings = "settings"
	CollectionProfiles = "profiles"
	CollectionQueue    = "queue"
	CollectionHistory  = "history"
)

// Store is the persistence boundary shared by the file and postgres
// backends. LoadCollection leaves out untouched when the collection has never
// been saved, so callers seed defaults by initializing out before the call.
type Store interface {
	LoadCollection(ctx context.Context, name string, out any) error
	SaveCollection(ctx context.Context, name string, value any) error
	Ping(ctx context.Context) error
	Close()
}
