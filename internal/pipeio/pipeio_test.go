package pipeio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"
)

func mustPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestReadFull_DeliversLateData(t *testing.T) {
	r, w := mustPipe(t)
	want := []byte("delayed payload")

	go func() {
		time.Sleep(30 * time.Millisecond)
		w.Write(want[:7])
		time.Sleep(20 * time.Millisecond)
		w.Write(want[7:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make([]byte, len(want))
	if err := ReadFull(ctx, r, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read %q, want %q", got, want)
	}
}

func TestReadFull_ContextDeadline(t *testing.T) {
	r, _ := mustPipe(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ReadFull(ctx, r, make([]byte, 8))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("took %v to notice the deadline", elapsed)
	}
}

func TestReadFull_CancelUnblocks(t *testing.T) {
	r, _ := mustPipe(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- ReadFull(ctx, r, make([]byte, 8))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock the read")
	}
}

func TestReadFull_ShortStream(t *testing.T) {
	r, w := mustPipe(t)
	w.Write([]byte("abc"))
	w.Close()

	ctx := context.Background()
	err := ReadFull(ctx, r, make([]byte, 8))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadFull_CleanEOF(t *testing.T) {
	r, w := mustPipe(t)
	w.Close()

	err := ReadFull(context.Background(), r, make([]byte, 1))
	if !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestWriteAll_LargePayloadDrains(t *testing.T) {
	// Larger than the kernel pipe buffer so the write must block at least
	// once and resume across deadline slices.
	r, w := mustPipe(t)
	payload := bytes.Repeat([]byte{0x5A}, 256*1024)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- WriteAll(ctx, w, payload)
	}()

	got, err := io.ReadAll(io.LimitReader(r, int64(len(payload))))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload corrupted in transit")
	}
}

func TestWriteAll_CancelUnblocksFullPipe(t *testing.T) {
	_, w := mustPipe(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		// Nobody reads, so the pipe fills and the write stalls.
		errCh <- WriteAll(ctx, w, bytes.Repeat([]byte{1}, 1<<20))
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock the write")
	}
}

func TestReaderWriter_Adapters(t *testing.T) {
	r, w := mustPipe(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	want := []byte("adapter round trip")
	go func() {
		if _, err := NewWriter(ctx, w).Write(want); err != nil {
			t.Errorf("Write: %v", err)
		}
	}()

	got := make([]byte, len(want))
	if _, err := io.ReadFull(NewReader(ctx, r), got); err != nil {
		t.Fatalf("ReadFull via adapter: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read %q, want %q", got, want)
	}
}
