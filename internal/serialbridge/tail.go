package serialbridge

import (
	"bufio"
	"context"
	"io"
)

// Tail scans newline-delimited lines from r and hands each one to handle
// until ctx is cancelled or the reader is exhausted. Errors from handle are
// passed to onError and do not stop the scan. It is the device-side
// counterpart of Channel.Send, used to bench-test the wire protocol.
func Tail(ctx context.Context, r io.Reader, handle func(line string) error, onError func(line string, err error)) error {
	scan := bufio.NewScanner(r)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the loop below can
	// observe cancellation
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if line == "" {
				continue
			}
			if err := handle(line); err != nil && onError != nil {
				onError(line, err)
			}
		}
	}
}
