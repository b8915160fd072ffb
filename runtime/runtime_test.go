package runtime_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KargJonas/sabus/peer"
	"github.com/KargJonas/sabus/runtime"
	"github.com/KargJonas/sabus/shm"
)

func TestAttachWorkerHandshakeHydratesExistingObjects(t *testing.T) {
	host := runtime.Host()
	obj, err := host.CreateSharedObject("counters", 4)
	require.NoError(t, err)
	require.NoError(t, obj.Write(context.Background(), encodeI32(42)))

	hostSide, peerSide := peer.NewChannelPair()
	defer hostSide.Close()
	defer peerSide.Close()

	workerDone := make(chan *runtime.Runtime, 1)
	workerErr := make(chan error, 1)
	go func() {
		w, err := runtime.Worker(peerSide)
		if err != nil {
			workerErr <- err
			return
		}
		workerDone <- w
	}()

	require.NoError(t, host.AttachWorker("worker-1", hostSide, map[string]string{"lang": "go"}))

	var worker *runtime.Runtime
	select {
	case worker = <-workerDone:
	case err := <-workerErr:
		t.Fatalf("worker handshake failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker handshake")
	}

	attached, err := worker.OpenSharedObject("counters")
	require.NoError(t, err)

	view, ok := attached.ReadLatest()
	require.True(t, ok)
	require.Equal(t, int32(42), decodeI32(view.Bytes))

	setup, err := worker.WorkerSetupData()
	require.NoError(t, err)
	require.Contains(t, string(setup), "go")
}

func TestCreateSharedObjectBroadcastsToAttachedPeers(t *testing.T) {
	host := runtime.Host()

	hostSide, peerSide := peer.NewChannelPair()
	defer hostSide.Close()
	defer peerSide.Close()

	workerDone := make(chan *runtime.Runtime, 1)
	go func() {
		w, err := runtime.Worker(peerSide)
		require.NoError(t, err)
		workerDone <- w
	}()

	require.NoError(t, host.AttachWorker("worker-2", hostSide, nil))
	worker := <-workerDone

	obj, err := host.CreateSharedObject("late-object", 4)
	require.NoError(t, err)
	require.NoError(t, obj.Write(context.Background(), encodeI32(7)))

	require.Eventually(t, func() bool {
		attached, err := worker.OpenSharedObject("late-object")
		if err != nil {
			return false
		}
		view, ok := attached.ReadLatest()
		return ok && decodeI32(view.Bytes) == 7
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAttachWorkerRejectsDuplicateName(t *testing.T) {
	host := runtime.Host()
	hostSideA, peerSideA := peer.NewChannelPair()
	defer hostSideA.Close()
	defer peerSideA.Close()

	go func() { _, _ = runtime.Worker(peerSideA) }()
	require.NoError(t, host.AttachWorker("dup", hostSideA, nil))

	hostSideB, peerSideB := peer.NewChannelPair()
	defer hostSideB.Close()
	defer peerSideB.Close()
	go func() { _, _ = runtime.Worker(peerSideB) }()

	err := host.AttachWorker("dup", hostSideB, nil)
	require.ErrorIs(t, err, runtime.ErrDuplicateID)
}

func TestCreateSharedObjectRejectsDuplicateID(t *testing.T) {
	host := runtime.Host()
	_, err := host.CreateSharedObject("dup-object", 4)
	require.NoError(t, err)

	_, err = host.CreateSharedObject("dup-object", 4)
	require.ErrorIs(t, err, runtime.ErrDuplicateID)
}

func TestOpenSharedObjectFailsForUnknownID(t *testing.T) {
	host := runtime.Host()
	_, err := host.OpenSharedObject("never-created")
	require.ErrorIs(t, err, runtime.ErrUnknownID)
}

func TestMarkWriterThreadDiedPropagatesToOwnedObjects(t *testing.T) {
	host := runtime.Host()
	obj, err := host.CreateSharedObject("owned", 4)
	require.NoError(t, err)

	holdCb := make(chan struct{})
	releaseCb := make(chan struct{})
	ownerSeen := make(chan int32, 1)
	go func() {
		_ = obj.RequestWrite(context.Background(), func(v *shm.WriteView) error {
			ownerSeen <- shm.ThreadID()
			close(holdCb)
			<-releaseCb
			return nil
		})
	}()
	<-holdCb
	owner := <-ownerSeen

	host.MarkWriterThreadDied(owner)
	close(releaseCb)

	err = obj.Write(context.Background(), encodeI32(1))
	require.ErrorIs(t, err, shm.ErrPoisoned)
}

func encodeI32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func decodeI32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}
