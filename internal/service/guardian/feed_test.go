package guardian

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// TestFeedServe drives the service through the JSON-lines protocol and
// checks the emitted responses and transitions.
func TestFeedServe(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	// Keep the exit delay longer than the test so no timer writes race the
	// output assertions.
	cfg.ExitDelay = time.Minute

	svc := NewService(cfg, &fakePanel{}, nil, nil, nil)

	var out bytes.Buffer

	feed := NewFeed(svc, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Run(ctx) //nolint:errcheck // Stopped via cancel.

	input := strings.Join([]string{
		`{"op":"arm","mode":"armed_away"}`,
		`{"op":"status"}`,
		`{"op":"launch_missiles"}`,
		`not json`,
	}, "\n")

	require.NoError(t, feed.Serve(ctx, strings.NewReader(input)))
	cancel()

	var responses []Response

	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}

	require.Len(t, responses, 5)

	// The arm transition is published before the command's ok.
	require.Equal(t, "transition", responses[0].Type)
	require.Equal(t, "disarmed", responses[0].Transition.From)
	require.Equal(t, "arming", responses[0].Transition.To)

	require.Equal(t, "ok", responses[1].Type)
	require.Equal(t, "arm", responses[1].Op)

	require.Equal(t, "status", responses[2].Type)
	require.Equal(t, "arming", string(responses[2].Status.State))

	require.Equal(t, "error", responses[3].Type)
	require.Contains(t, responses[3].Error, "unknown op")

	require.Equal(t, "error", responses[4].Type)
	require.Contains(t, responses[4].Error, "bad request")
}
