package reconcile

import "context"

// BatchSize is the fixed page size used when draining a source. The sources
// cap single responses, so anything larger would silently truncate.
const BatchSize = 1000

// pageFunc fetches one page of rows at the given offset.
type pageFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// fetchAll drains a paginated source into one order-preserving slice. It
// requests pages of BatchSize rows at increasing offsets and stops as soon as
// a page comes back short (including empty); a full page is the only
// continuation signal, regardless of any advertised total. A page error
// aborts the drain; no partial result is returned.
func fetchAll[T any](ctx context.Context, fetch pageFunc[T]) ([]T, error) {
	var all []T
	for offset := 0; ; offset += BatchSize {
		batch, err := fetch(ctx, BatchSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < BatchSize {
			return all, nil
		}
	}
}
