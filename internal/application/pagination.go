package application

import "context"

// fetchPagesAscending drains a newest-first paginated feed and restores
// ascending order: pages are concatenated highest-page-first and each page is
// reversed. Fetching stops early on a short page (feed exhausted). count is
// the number of entries wanted; limit is the upstream page size.
func fetchPagesAscending[T any](ctx context.Context, count, limit int, fetch func(ctx context.Context, page, limit int) ([]T, error)) ([]T, error) {
	if count <= 0 || limit <= 0 {
		return nil, nil
	}

	pages := (count + limit - 1) / limit
	collected := make([][]T, 0, pages)
	for page := 1; page <= pages; page++ {
		batch, err := fetch(ctx, page, limit)
		if err != nil {
			return nil, err
		}
		collected = append(collected, batch)
		if len(batch) < limit {
			break
		}
	}

	var out []T
	for i := len(collected) - 1; i >= 0; i-- {
		page := collected[i]
		for j := len(page) - 1; j >= 0; j-- {
			out = append(out, page[j])
		}
	}
	return out, nil
}
