package launch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mit-dci/parsec-local/localnet"
)

func TestWaitReady_LiveEndpoints(t *testing.T) {
	eps := []localnet.Endpoint{liveEndpoint(t), liveEndpoint(t)}
	if err := WaitReady(context.Background(), eps, time.Second, 10*time.Millisecond); err != nil {
		t.Fatalf("WaitReady() = %v, want nil", err)
	}
}

func TestWaitReady_TimesOut(t *testing.T) {
	start := time.Now()
	err := WaitReady(context.Background(), []localnet.Endpoint{freeEndpoint(t)}, 200*time.Millisecond, 20*time.Millisecond)
	if !errors.Is(err, ErrReadinessTimeout) {
		t.Fatalf("WaitReady() = %v, want ErrReadinessTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("WaitReady took %v, timeout not honored", elapsed)
	}
}

func TestWaitReady_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitReady(ctx, []localnet.Endpoint{freeEndpoint(t)}, time.Second, 10*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitReady() = %v, want context.Canceled", err)
	}
}

func TestWaitReady_NoEndpoints(t *testing.T) {
	if err := WaitReady(context.Background(), nil, time.Millisecond, time.Millisecond); err != nil {
		t.Fatalf("WaitReady(nil) = %v", err)
	}
}
