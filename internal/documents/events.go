package documents

import "context"

// CompletionHandler receives a notification after a document reaches DONE,
// used to invalidate cached aggregates.
type CompletionHandler interface {
	DocumentCompleted(ctx context.Context, kind Kind, id int64, reference string)
}
