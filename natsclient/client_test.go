package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bond-anton/nts.service/control"
	"github.com/bond-anton/nts.service/errors"
)

func TestNewBusDefaults(t *testing.T) {
	b := NewBus("nats://localhost:4222")

	assert.Equal(t, 10, b.maxReconnects)
	assert.Equal(t, 2*time.Second, b.reconnectWait)
	assert.Equal(t, "nts-worker", b.clientName)
	assert.False(t, b.IsConnected())
}

func TestBusOptions(t *testing.T) {
	b := NewBus("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(time.Second),
		WithPollTimeout(time.Millisecond),
		WithClientName("thermo"),
		WithCredentials("/etc/nats/worker.creds"),
	)

	assert.Equal(t, 3, b.maxReconnects)
	assert.Equal(t, time.Second, b.reconnectWait)
	assert.Equal(t, time.Millisecond, b.pollTimeout)
	assert.Equal(t, "thermo", b.clientName)
	assert.Equal(t, "/etc/nats/worker.creds", b.credentials)
}

func TestSubscribeRequiresConnection(t *testing.T) {
	b := NewBus("nats://localhost:4222")

	err := b.Subscribe(context.Background(), "svc")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNextPendingRequiresSubscription(t *testing.T) {
	b := NewBus("nats://localhost:4222")

	_, err := b.NextPending(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCloseWithoutConnection(t *testing.T) {
	b := NewBus("nats://localhost:4222")
	assert.NoError(t, b.Close(context.Background()))
}

func startNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)

	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return natsContainer, fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestIntegration_PublishReceive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	natsContainer, url := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	bus := NewBus(url, WithPollTimeout(50*time.Millisecond))
	require.NoError(t, bus.Connect(ctx))
	defer bus.Close(ctx)

	require.NoError(t, bus.Subscribe(ctx, "itest"))

	msg, err := bus.NextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg, "no pending message expected before publish")

	require.NoError(t, bus.conn.Publish("itest", []byte("exit")))
	require.NoError(t, bus.conn.Flush())

	deadline := time.Now().Add(2 * time.Second)
	for msg == nil && time.Now().Before(deadline) {
		msg, err = bus.NextPending(ctx)
		require.NoError(t, err)
	}
	require.NotNil(t, msg)
	assert.Equal(t, control.KindData, msg.Kind)
	assert.Equal(t, "itest", msg.Topic)
	assert.Equal(t, "exit", string(msg.Payload))
}
