//go:build linux

package curio_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/brickingsoft/curio"
	"github.com/brickingsoft/curio/pkg/aio"
)

func listen(t *testing.T) *curio.Listener {
	t.Helper()
	ln, lnErr := curio.Listen("tcp", "127.0.0.1:0")
	if lnErr != nil {
		if aio.IsUnsupported(lnErr) {
			t.Skip(lnErr)
		}
		t.Fatal(lnErr)
	}
	return ln
}

func TestEcho(t *testing.T) {
	ln := listen(t)
	defer func() {
		_ = ln.Close()
	}()

	serverErr := make(chan error, 1)
	go func() {
		s, acceptErr := ln.Accept()
		if acceptErr != nil {
			serverErr <- acceptErr
			return
		}
		defer func() {
			_ = s.Close()
		}()
		buf := make([]byte, 4096)
		for {
			n, readErr := s.Read(buf)
			if readErr != nil {
				if readErr == io.EOF {
					serverErr <- nil
				} else {
					serverErr <- readErr
				}
				return
			}
			if _, writeErr := s.Write(buf[:n]); writeErr != nil {
				serverErr <- writeErr
				return
			}
		}
	}()

	conn, dialErr := curio.Dial("tcp", ln.Addr().String())
	if dialErr != nil {
		t.Fatal(dialErr)
	}

	payload := make([]byte, 16384)
	for i := range payload {
		payload[i] = byte(i*31 + 7)
	}
	if _, writeErr := conn.Write(payload); writeErr != nil {
		_ = conn.Close()
		t.Fatal(writeErr)
	}
	got := make([]byte, 0, len(payload))
	buf := make([]byte, 4096)
	for len(got) < len(payload) {
		n, readErr := conn.Read(buf)
		if readErr != nil {
			_ = conn.Close()
			t.Fatal(readErr)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, payload) {
		t.Error("echo mismatch")
	}

	if closeErr := conn.Close(); closeErr != nil {
		t.Error(closeErr)
	}
	if err := <-serverErr; err != nil {
		t.Error("server:", err)
	}
}

func TestReadDeadline(t *testing.T) {
	ln := listen(t)
	defer func() {
		_ = ln.Close()
	}()

	accepted := make(chan *curio.Stream, 1)
	go func() {
		s, acceptErr := ln.Accept()
		if acceptErr != nil {
			accepted <- nil
			return
		}
		accepted <- s
	}()

	conn, dialErr := curio.Dial("tcp", ln.Addr().String())
	if dialErr != nil {
		t.Fatal(dialErr)
	}
	defer func() {
		_ = conn.Close()
	}()
	if s := <-accepted; s != nil {
		defer func() {
			_ = s.Close()
		}()
	}

	if err := conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if _, readErr := conn.Read(make([]byte, 8)); !curio.IsTimeout(readErr) {
		t.Error("want timeout, got", readErr)
	}
}

func TestFutures(t *testing.T) {
	ln := listen(t)
	defer func() {
		_ = ln.Close()
	}()

	accepted := make(chan *curio.Stream, 1)
	ln.AcceptFuture(context.Background()).OnComplete(func(_ context.Context, s *curio.Stream, err error) {
		if err != nil {
			t.Error("accept future:", err)
			accepted <- nil
			return
		}
		accepted <- s
	})

	dialed := make(chan *curio.Stream, 1)
	curio.DefaultDialer.DialFuture(context.Background(), "tcp", ln.Addr().String()).OnComplete(func(_ context.Context, s *curio.Stream, err error) {
		if err != nil {
			t.Error("dial future:", err)
			dialed <- nil
			return
		}
		dialed <- s
	})

	conn := <-dialed
	srv := <-accepted
	if conn == nil || srv == nil {
		t.FailNow()
	}
	defer func() {
		_ = conn.Close()
		_ = srv.Close()
	}()

	wrote := make(chan error, 1)
	conn.WriteFuture(context.Background(), []byte("hello")).OnComplete(func(_ context.Context, _ int, err error) {
		wrote <- err
	})
	buf := make([]byte, 5)
	read := make(chan error, 1)
	srv.ReadFuture(context.Background(), buf).OnComplete(func(_ context.Context, n int, err error) {
		if err == nil && string(buf[:n]) != "hello" {
			t.Errorf("read %q", buf[:n])
		}
		read <- err
	})
	if err := <-wrote; err != nil {
		t.Error("write future:", err)
	}
	if err := <-read; err != nil {
		t.Error("read future:", err)
	}
}

func TestCloseUnblocksAccept(t *testing.T) {
	ln := listen(t)

	acceptErr := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		acceptErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-acceptErr:
		if !curio.IsClosed(err) {
			t.Error("accept after close:", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("accept still blocked after close")
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	ln := listen(t)
	defer func() {
		_ = ln.Close()
	}()

	accepted := make(chan *curio.Stream, 1)
	go func() {
		s, _ := ln.Accept()
		accepted <- s
	}()

	conn, dialErr := curio.Dial("tcp", ln.Addr().String())
	if dialErr != nil {
		t.Fatal(dialErr)
	}
	defer func() {
		_ = conn.Close()
	}()
	srv := <-accepted
	if srv == nil {
		t.Fatal("accept failed")
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := srv.Read(make([]byte, 8))
		readErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	if err := srv.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-readErr:
		if err == nil || err == io.EOF {
			t.Error("read after close:", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("read still blocked after close")
	}
}

func TestCloseWrite(t *testing.T) {
	ln := listen(t)
	defer func() {
		_ = ln.Close()
	}()

	accepted := make(chan *curio.Stream, 1)
	go func() {
		s, _ := ln.Accept()
		accepted <- s
	}()

	conn, dialErr := curio.Dial("tcp", ln.Addr().String())
	if dialErr != nil {
		t.Fatal(dialErr)
	}
	srv := <-accepted
	if srv == nil {
		_ = conn.Close()
		t.Fatal("accept failed")
	}
	defer func() {
		_ = conn.Close()
		_ = srv.Close()
	}()

	if err := conn.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	if _, readErr := srv.Read(make([]byte, 8)); readErr != io.EOF {
		t.Error("want EOF after CloseWrite, got", readErr)
	}
}
