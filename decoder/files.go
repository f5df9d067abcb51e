package decoder

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of decoding one file of a batch.
type Result struct {
	Path string
	File *File
	Err  error
}

// DecodeFiles decodes independent files concurrently with at most workers
// decodes in flight (GOMAXPROCS when workers <= 0). Results follow the order
// of paths. Files not started before ctx is done report ctx.Err().
func DecodeFiles(ctx context.Context, paths []string, workers int, opts ...Option) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].File, results[i].Err = DecodeFile(path, opts...)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
