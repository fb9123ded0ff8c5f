package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRendezvousAddr(t *testing.T) {
	if got, want := RendezvousAddr(), "127.0.0.1:44444"; got != want {
		t.Fatalf("RendezvousAddr() = %q, want %q", got, want)
	}
}

func TestWaitForMineLockReturnsOnceFileExists(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(wd)

	done := make(chan error, 1)
	go func() {
		done <- WaitForMineLock(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("WaitForMineLock returned early: %v", err)
	default:
	}

	if err := os.WriteFile(filepath.Join(dir, "mine_lock"), nil, 0o644); err != nil {
		t.Fatalf("write mine_lock: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForMineLock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForMineLock did not return after mine_lock was created")
	}
}

func TestWaitForMineLockHonorsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(wd)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitForMineLock(ctx); err == nil {
		t.Fatal("expected WaitForMineLock to return an error on cancelled context")
	}
}
