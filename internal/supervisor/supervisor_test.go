package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoInitScript answers "initialize" with a single tool and fails every
// other method, for exercising the Supervisor's spawn/handshake path
// without a real capability server binary.
const echoInitScript = `
while IFS= read -r line; do
  id=$(echo "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      echo "{\"jsonrpc\":\"2.0\",\"id\":$id,\"result\":{\"tools\":[{\"name\":\"ping\",\"description\":\"ping\",\"inputSchema\":{}}]}}"
      ;;
    *)
      [ -n "$id" ] && echo "{\"jsonrpc\":\"2.0\",\"id\":$id,\"error\":{\"code\":-32601,\"message\":\"nope\"}}"
      ;;
  esac
done
`

// failInitScript exits immediately without ever answering the initialize
// request, so the transport's pending channel is closed right away instead
// of the test having to wait out the full initialize-handshake deadline.
const failInitScript = `exit 0`

func TestSpawnAll_PartialStartup(t *testing.T) {
	sup := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, failures := sup.SpawnAll(ctx, []ServerConfig{
		{Name: "good", Transport: TransportStdio, Command: []string{"sh", "-c", echoInitScript}},
		{Name: "bad", Transport: TransportStdio, Command: []string{"sh", "-c", "exit 1"}},
	})

	assert.ElementsMatch(t, []string{"good"}, ok)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Name)

	state, found := sup.State("good")
	require.True(t, found)
	assert.Equal(t, StateRunning, state)

	tools, found := sup.Tools("good")
	require.True(t, found)
	require.Len(t, tools, 1)
	assert.Equal(t, "ping", tools[0].Name)

	sup.ShutdownAll(context.Background())
}

func TestSpawnOne_FailsWithoutInitializeReply(t *testing.T) {
	sup := New()
	ctx := context.Background()
	err := sup.spawnOne(ctx, ServerConfig{Name: "silent", Transport: TransportStdio, Command: []string{"sh", "-c", failInitScript}})
	require.Error(t, err)

	state, found := sup.State("silent")
	require.True(t, found)
	assert.Equal(t, StateCrashed, state)
}
