package serialbridge

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTail_DeliversLines(t *testing.T) {
	input := "0,1,150.00\n\n0,0,150.00\nbogus\n"
	var got []string
	var failed []string

	err := Tail(context.Background(), strings.NewReader(input),
		func(line string) error {
			if line == "bogus" {
				return errors.New("bad line")
			}
			got = append(got, line)
			return nil
		},
		func(line string, err error) { failed = append(failed, line) },
	)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}

	if diff := cmp.Diff([]string{"0,1,150.00", "0,0,150.00"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"bogus"}, failed); diff != "" {
		t.Errorf("failed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestTail_StopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Tail(ctx, r, func(string) error { return nil }, nil)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Tail() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Tail did not return after cancellation")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestTail_ReturnsReadError(t *testing.T) {
	err := Tail(context.Background(), failingReader{}, func(string) error { return nil }, nil)
	if err == nil || err.Error() != "read failed" {
		t.Errorf("Tail() error = %v, want read failed", err)
	}
}
