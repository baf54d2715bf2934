package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"problem-map/errors"
	"problem-map/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	workerMock := mocks.NewMockWorker(ctrl)

	var calls atomic.Int32
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			calls.Add(1)
			panic("boom")
		}).
		AnyTimes()

	sup := NewSupervisor(log, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sup.Add(workerMock).Run(ctx)
		close(done)
	}()

	// Waiting for panics and restarts
	<-done
	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	workerMock := mocks.NewMockWorker(ctrl)

	// Given a worker running only once
	workerMock.EXPECT().
		Run(gomock.Any()).
		Return(nil).
		Times(1)

	sup := NewSupervisor(slog.Default(), 0)

	// Given a channel to notify when Run() terminated
	done := make(chan struct{})
	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success and stopped
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_CriticalWorkerIsNeverRestarted(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	critical := mocks.NewMockWorker(ctrl)

	// Given a critical worker that crashes on its first run
	critical.EXPECT().
		Run(gomock.Any()).
		Return(errors.ErrApplierCrashed).
		Times(1)

	sup := NewSupervisor(slog.Default(), 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		sup.AddCritical(critical).Run(context.Background())
		close(done)
	}()

	// Then the failure is reported once and nothing restarts it
	select {
	case err := <-sup.Failures():
		req.ErrorIs(err, errors.ErrApplierCrashed)
	case <-time.After(time.Second):
		req.Fail("Critical failure not reported")
	}
	<-done
}

func TestSupervisor_CriticalPanicIsReported(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	critical := mocks.NewMockWorker(ctrl)
	critical.EXPECT().Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error { panic("boom") }).
		Times(1)

	sup := NewSupervisor(slog.Default(), 0)
	go sup.AddCritical(critical).Run(context.Background())

	select {
	case err := <-sup.Failures():
		req.ErrorIs(err, errors.ErrWorkerPanic)
	case <-time.After(time.Second):
		req.Fail("Critical panic not reported")
	}
}

func TestSupervisor_StopIsNotAFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	critical := mocks.NewMockWorker(ctrl)
	ordinary := mocks.NewMockWorker(ctrl)

	started := make(chan struct{}, 2)
	blockUntilDone := func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	critical.EXPECT().Run(gomock.Any()).DoAndReturn(blockUntilDone).Times(1)
	ordinary.EXPECT().Run(gomock.Any()).DoAndReturn(blockUntilDone).Times(1)

	sup := NewSupervisor(slog.Default(), 0)
	done := make(chan struct{})
	go func() {
		sup.Add(ordinary).AddCritical(critical).Run(context.Background())
		close(done)
	}()

	// When the supervisor is stopped
	<-started
	<-started
	sup.Stop()

	// Then every worker returns and no failure is reported
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Supervisor did not stop")
	}
	select {
	case err := <-sup.Failures():
		req.Failf("Unexpected failure", "%v", err)
	default:
	}
}
