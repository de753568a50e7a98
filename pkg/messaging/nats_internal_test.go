package messaging

import (
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNATS *server.Server

func TestMain(m *testing.M) {
	opts := &server.Options{
		Host:                  "127.0.0.1",
		Port:                  -1,
		NoLog:                 true,
		NoSigs:                true,
		MaxControlLine:        4096,
		DisableShortFirstPing: true,
	}
	testNATS = test.RunServer(opts)

	code := m.Run()

	testNATS.Shutdown()
	os.Exit(code)
}

func TestNATSNotifier_PublishesScopedSubjects(t *testing.T) {
	t.Parallel()

	sub, err := nats.Connect(testNATS.ClientURL())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	msgs := make(chan *nats.Msg, 8)
	_, err = sub.ChanSubscribe("test-zone.>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	n, err := NewNATSNotifier(NATSConfig{Name: "test", URL: testNATS.ClientURL(), SubjectPrefix: "test-zone"}, zerolog.Nop())
	require.NoError(t, err)

	n.Notify(ToEntity(42), PostureUpdate{Posture: 2})
	n.Notify(Broadcast(), SystemMessage{Text: "server restarting"})
	require.NoError(t, n.Close())

	var got []*nats.Msg
	for len(got) < 2 {
		select {
		case m := <-msgs:
			got = append(got, m)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for notifications")
		}
	}

	assert.Equal(t, "test-zone.entity.42.posture_update", got[0].Subject)
	var posture PostureUpdate
	require.NoError(t, json.Unmarshal(got[0].Data, &posture))
	assert.Equal(t, uint8(2), posture.Posture)

	assert.Equal(t, "test-zone.zone.system_message", got[1].Subject)
	var msg SystemMessage
	require.NoError(t, json.Unmarshal(got[1].Data, &msg))
	assert.Equal(t, "server restarting", msg.Text)
}

func TestNATSNotifier_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewNATSNotifier(NATSConfig{}, zerolog.Nop())
	require.Error(t, err)
	_, err = NewNATSNotifier(NATSConfig{URL: testNATS.ClientURL()}, zerolog.Nop())
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Notify(ToEntity(1), ServerTime{Time: 10})
	r.Notify(ToEntity(2), ServerTime{Time: 10})
	r.Notify(Broadcast(), WeatherUpdate{Weather: 3})

	assert.Len(t, r.All(), 3)
	assert.Len(t, r.Named("server_time"), 2)
	assert.Equal(t, ScopeZone, r.Named("weather_update")[0].Scope.Kind)

	r.Reset()
	assert.Empty(t, r.All())
}
