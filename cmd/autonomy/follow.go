package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// followFile tails path to stdout while the pipeline runs, starting from
// the current end of file. Returns a function that stops the tail.
func followFile(ctx context.Context, path string) func() {
	tailCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		var offset int64
		if info, err := os.Stat(path); err == nil {
			offset = info.Size()
		}

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-tailCtx.Done():
				return
			case <-ticker.C:
			}

			f, err := os.Open(path)
			if err != nil {
				continue
			}
			info, err := f.Stat()
			if err != nil {
				_ = f.Close()
				continue
			}
			if info.Size() < offset {
				// Truncated or rotated; start over from the top.
				offset = 0
			}
			if info.Size() > offset {
				if _, err := f.Seek(offset, io.SeekStart); err == nil {
					n, _ := io.Copy(os.Stdout, f)
					offset += n
				}
			}
			_ = f.Close()
		}
	}()

	return func() {
		cancel()
		<-done
		fmt.Println()
	}
}
