package semaphores_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brickingsoft/curio/pkg/semaphores"
)

func TestSemaphores_Signal(t *testing.T) {
	sh, _ := semaphores.New(time.Second)
	defer func() {
		_ = sh.Close()
	}()
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sh.Wait(context.Background()); err != nil {
			t.Error("wait:", err)
		}
	}()
	time.Sleep(10 * time.Millisecond)
	sh.Signal()
	wg.Wait()
}

func TestSemaphores_Timeout(t *testing.T) {
	sh, _ := semaphores.New(10 * time.Millisecond)
	defer func() {
		_ = sh.Close()
	}()
	err := sh.Wait(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("want deadline exceeded, got", err)
	}
}

func TestSemaphores_WaitAfterTimeout(t *testing.T) {
	sh, _ := semaphores.New(20 * time.Millisecond)
	defer func() {
		_ = sh.Close()
	}()
	if err := sh.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("first wait:", err)
	}
	started := time.Now()
	err := sh.Wait(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("second wait:", err)
	}
	if elapsed := time.Since(started); elapsed < 10*time.Millisecond {
		t.Errorf("second wait returned after %v without parking", elapsed)
	}
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if waitErr := sh.Wait(context.Background()); waitErr != nil {
			t.Error("wait after expiries:", waitErr)
		}
	}()
	time.Sleep(5 * time.Millisecond)
	sh.Signal()
	wg.Wait()
}

func TestSemaphores_Cancel(t *testing.T) {
	sh, _ := semaphores.New(time.Second)
	defer func() {
		_ = sh.Close()
	}()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sh.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Error("want canceled, got", err)
	}
}
