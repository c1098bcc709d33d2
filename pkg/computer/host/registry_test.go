package host_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/host"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
	"github.com/SquidDev-CC/bedrock/pkg/computer/protocol"
)

// recorder collects everything a registry broadcasts.
type recorder struct {
	mu       sync.Mutex
	messages []protocol.Message
	fail     error
}

func (r *recorder) broadcast(msg protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.messages = append(r.messages, msg)
	return nil
}

func noopFactory(int, *string, bool, *computer.Session) error { return nil }

func TestRegistryOpen(t *testing.T) {
	created := map[int]int{}
	registry := host.NewRegistry(host.WithFactory(func(id int, _ *string, _ bool, _ *computer.Session) error {
		created[id]++
		return nil
	}))

	msg, err := registry.Open(0, true)
	require.NoError(t, err)
	assert.Equal(t, 0, msg.ID)
	assert.True(t, msg.Advanced)
	assert.Equal(t, 51, msg.Terminal.SizeX)
	assert.Equal(t, 19, msg.Terminal.SizeY)
	assert.Equal(t, "Hello"+strings.Repeat(" ", 46), msg.Terminal.Text[0])
	assert.Equal(t, strings.Repeat(" ", 51), msg.Terminal.Text[1])

	// Reopening reuses the session, and keeps its original advanced flag.
	again, err := registry.Open(0, false)
	require.NoError(t, err)
	assert.True(t, again.Advanced)

	_, err = registry.Open(1, false)
	require.NoError(t, err)

	assert.Equal(t, map[int]int{0: 1, 1: 1}, created)
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryOpenErrors(t *testing.T) {
	t.Run("No factory", func(t *testing.T) {
		registry := host.NewRegistry()
		_, err := registry.Open(0, false)
		assert.ErrorIs(t, err, host.ErrNoFactory)
		assert.Equal(t, 0, registry.Len())

		registry.SetFactory(noopFactory)
		_, err = registry.Open(0, false)
		assert.NoError(t, err)
	})

	t.Run("Factory failure", func(t *testing.T) {
		boom := errors.New("no runtime")
		registry := host.NewRegistry(host.WithFactory(func(int, *string, bool, *computer.Session) error { return boom }))

		_, err := registry.Open(3, false)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, registry.Len())
	})

	t.Run("Backend failure", func(t *testing.T) {
		boom := errors.New("disk missing")
		registry := host.NewRegistry(
			host.WithFactory(noopFactory),
			host.WithBackend(func(int) (persist.Backend, error) { return nil, boom }))

		_, err := registry.Open(0, false)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Narrow terminal truncates the greeting", func(t *testing.T) {
		registry := host.NewRegistry(host.WithFactory(noopFactory), host.WithTerminalSize(3, 1))
		msg, err := registry.Open(0, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hel"}, msg.Terminal.Text)
	})
}

func TestRegistryFactorySeesStoredLabel(t *testing.T) {
	backends := map[int]*persist.Memory{7: persist.NewMemory()}
	name := "turtle"
	require.NoError(t, backends[7].SetLabel(&name))

	var seen *string
	registry := host.NewRegistry(
		host.WithBackend(func(id int) (persist.Backend, error) { return backends[id], nil }),
		host.WithFactory(func(_ int, label *string, _ bool, _ *computer.Session) error {
			seen = label
			return nil
		}))

	_, err := registry.Open(7, false)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "turtle", *seen)
}

func TestRegistryIDFor(t *testing.T) {
	registry := host.NewRegistry()

	a := registry.IDFor(`{"x":1,"y":64,"z":3}`)
	b := registry.IDFor(`{"x":2,"y":64,"z":3}`)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, a, registry.IDFor(`{"x":1,"y":64,"z":3}`))
}

func TestRegistryBroadcastsOnFlush(t *testing.T) {
	rec := &recorder{}
	reg := prometheus.NewRegistry()
	metrics := host.NewMetrics(reg)
	registry := host.NewRegistry(
		host.WithFactory(noopFactory),
		host.WithBroadcaster(rec.broadcast),
		host.WithMetrics(metrics))

	_, err := registry.Open(5, false)
	require.NoError(t, err)
	assert.Empty(t, rec.messages, "opening does not broadcast a sync")

	require.NoError(t, registry.With(5, func(session *computer.Session) error {
		if err := session.SetTerminalLine(0, strings.Repeat("x", 51), strings.Repeat("0", 51), strings.Repeat("f", 51)); err != nil {
			return err
		}
		return session.FlushTerminal()
	}))

	require.Len(t, rec.messages, 1)
	synced, ok := rec.messages[0].(protocol.SyncTerminal)
	require.True(t, ok)
	assert.Equal(t, 5, synced.ID)
	assert.Equal(t, strings.Repeat("x", 51), synced.Terminal.Text[0])

	rec.fail = errors.New("socket closed")
	err = registry.With(5, func(session *computer.Session) error { return session.FlushTerminal() })
	assert.ErrorIs(t, err, rec.fail)

	assert.Equal(t, 1.0, gaugeValue(t, reg, "bedrock_host_sessions_open"))
	count, err := testutil.GatherAndCount(reg, "bedrock_host_messages_sent_total", "bedrock_host_messages_failed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			require.Len(t, family.GetMetric(), 1)
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestRegistryHandle(t *testing.T) {
	var calls []string
	registry := host.NewRegistry(host.WithFactory(func(_ int, _ *string, _ bool, session *computer.Session) error {
		if err := session.OnReboot(func() { calls = append(calls, "reboot") }); err != nil {
			return err
		}
		return session.OnEvent(func(event string, args []string) {
			calls = append(calls, event+" "+strings.Join(args, ","))
		})
	}))

	_, err := registry.Open(0, false)
	require.NoError(t, err)

	require.NoError(t, registry.HandleAction(protocol.Action{ID: 0, Action: protocol.ActionReboot}))
	require.NoError(t, registry.HandleQueueEvent(protocol.QueueEvent{ID: 0, Event: "char", Args: []any{"a"}}))
	require.NoError(t, registry.Handle(&protocol.QueueEvent{ID: 0, Event: "key", Args: []any{30, false}}))
	assert.Equal(t, []string{"reboot", `char "a"`, "key 30,false"}, calls)

	// Unknown computers are ignored, bad actions are not.
	assert.NoError(t, registry.HandleAction(protocol.Action{ID: 99, Action: protocol.ActionReboot}))
	assert.NoError(t, registry.HandleQueueEvent(protocol.QueueEvent{ID: 99, Event: "char"}))
	assert.ErrorIs(t, registry.HandleAction(protocol.Action{ID: 0, Action: "explode"}), protocol.ErrUnknownAction)
	assert.ErrorIs(t, registry.Handle(protocol.OpenComputer{}), protocol.ErrUnexpectedMessage)
	assert.Len(t, calls, 3)
}

func TestRegistryWithUnknownComputer(t *testing.T) {
	registry := host.NewRegistry()
	err := registry.With(1, func(*computer.Session) error { return nil })
	assert.ErrorIs(t, err, host.ErrUnknownComputer)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := host.NewRegistry(host.WithFactory(noopFactory))
	_, err := registry.Open(0, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = registry.With(0, func(session *computer.Session) error {
					_, err := session.CreateDirectory("worker")
					return err
				})
				_ = registry.IDFor(strings.Repeat("k", i))
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, registry.With(0, func(session *computer.Session) error {
		children, err := session.Filesystem().List("")
		require.NoError(t, err)
		assert.Equal(t, []string{"worker"}, children)
		return nil
	}))
}
