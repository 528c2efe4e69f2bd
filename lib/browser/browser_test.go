package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunContextForwardsCallerCancellation(t *testing.T) {
	caller, cancelCaller := context.WithCancel(context.Background())
	session := context.Background()

	ctx, cleanup := runContext(caller, session, time.Minute)
	defer cleanup()

	require.NoError(t, ctx.Err())
	cancelCaller()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("action context not cancelled with the caller")
	}
}

func TestRunContextInheritsSessionCancellation(t *testing.T) {
	session, cancelSession := context.WithCancel(context.Background())

	ctx, cleanup := runContext(context.Background(), session, time.Minute)
	defer cleanup()

	cancelSession()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("action context not cancelled with the session")
	}
}

func TestRunContextTimeout(t *testing.T) {
	ctx, cleanup := runContext(context.Background(), context.Background(), 10*time.Millisecond)
	defer cleanup()

	select {
	case <-ctx.Done():
		require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("timeout did not apply")
	}
}
