package ws_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/testutil"
	"github.com/vedran77/taskflow/internal/transport/ws"
)

const eventTimeout = 2 * time.Second

// teamChannel creates a project with default channels, invites member and
// returns the project's general channel.
func teamChannel(t *testing.T, ts *testutil.TestServer, ownerToken, memberEmail, memberToken string) domain.Channel {
	t.Helper()

	var project domain.Project
	resp := ts.Do(t, http.MethodPost, "/projects", ownerToken, map[string]any{
		"name":                  "Apollo",
		"with_default_channels": true,
	})
	testutil.DecodeJSON(t, resp, http.StatusCreated, &project)

	var inv domain.Invitation
	resp = ts.Do(t, http.MethodPost, "/projects/"+project.ID.String()+"/invitations", ownerToken, map[string]any{
		"email": memberEmail,
	})
	testutil.DecodeJSON(t, resp, http.StatusCreated, &inv)

	resp = ts.Do(t, http.MethodPost, "/invitations/"+inv.ID.String()+"/accept", memberToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, nil)

	var channels []domain.Channel
	resp = ts.Do(t, http.MethodGet, "/projects/"+project.ID.String()+"/channels", ownerToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &channels)
	for _, ch := range channels {
		if ch.Type == domain.ChannelTypeProjectGeneral {
			return ch
		}
	}
	t.Fatal("project has no general channel")
	return domain.Channel{}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, resp, err := gorillaWS.DefaultDialer.Dial(ts.WebSocketURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp2, err := gorillaWS.DefaultDialer.Dial(ts.WebSocketURL("not-a-jwt"), nil)
	require.Error(t, err)
	require.NotNil(t, resp2)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestWebSocketPing(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := ts.Register(t, "ping@example.com", "Ping")

	client := testutil.NewWSClient(t, ts.WebSocketURL(token))
	client.SendEvent(ws.Event{Type: ws.EventTypePing})
	evt := client.ReadEvent(eventTimeout)
	assert.Equal(t, ws.EventTypePong, evt.Type)

	client.SendEvent(ws.Event{Type: "dance"})
	evt = client.ExpectEvent(ws.EventTypeError, eventTimeout)
	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "UNKNOWN_EVENT", payload.Code)
}

func TestWebSocketChannelFlow(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, ownerToken := ts.Register(t, "owner@example.com", "Olive Owner")
	memberID, memberToken := ts.Register(t, "member@example.com", "Max Member")
	_, outsiderToken := ts.Register(t, "outsider@example.com", "Oscar")

	general := teamChannel(t, ts, ownerToken, "member@example.com", memberToken)

	owner := testutil.NewWSClient(t, ts.WebSocketURL(ownerToken))
	member := testutil.NewWSClient(t, ts.WebSocketURL(memberToken))
	outsider := testutil.NewWSClient(t, ts.WebSocketURL(outsiderToken))

	owner.Send(ws.EventTypeJoinChannel, general.ID)
	joined := owner.ExpectEvent(ws.EventTypeJoinedChannel, eventTimeout)
	require.NotNil(t, joined.ChannelID)
	assert.Equal(t, general.ID, *joined.ChannelID)

	member.Send(ws.EventTypeJoinChannel, general.ID)
	member.ExpectEvent(ws.EventTypeJoinedChannel, eventTimeout)

	t.Run("outsider cannot join", func(t *testing.T) {
		outsider.Send(ws.EventTypeJoinChannel, general.ID)
		evt := outsider.ExpectEvent(ws.EventTypeError, eventTimeout)
		var payload ws.ErrorPayload
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		assert.Equal(t, "NOT_FOUND", payload.Code)
	})

	t.Run("typing skips the sender", func(t *testing.T) {
		member.Send(ws.EventTypeTypingStart, general.ID)

		evt := owner.ExpectEvent(ws.EventTypeTypingStart, eventTimeout)
		var payload ws.TypingPayload
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		assert.Equal(t, memberID, payload.UserID)
		assert.Equal(t, "Max Member", payload.UserName)

		member.ExpectNoEvent(ws.EventTypeTypingStart, 200*time.Millisecond)
	})

	t.Run("messages fan out to the room", func(t *testing.T) {
		resp := ts.Do(t, http.MethodPost, "/channels/"+general.ID.String()+"/messages", ownerToken, map[string]any{
			"content": "hello team",
		})
		var sent domain.Message
		testutil.DecodeJSON(t, resp, http.StatusCreated, &sent)

		for _, c := range []*testutil.WSClient{owner, member} {
			evt := c.ExpectEvent(service.EventMessageCreated, eventTimeout)
			var msg domain.Message
			require.NoError(t, json.Unmarshal(evt.Payload, &msg))
			assert.Equal(t, sent.ID, msg.ID)
			assert.Equal(t, "hello team", msg.Content)
		}
		outsider.ExpectNoEvent(service.EventMessageCreated, 200*time.Millisecond)

		resp = ts.Do(t, http.MethodDelete, "/messages/"+sent.ID.String(), ownerToken, nil)
		testutil.DecodeJSON(t, resp, http.StatusNoContent, nil)

		evt := member.ExpectEvent(service.EventMessageDeleted, eventTimeout)
		var deleted service.MessageDeleted
		require.NoError(t, json.Unmarshal(evt.Payload, &deleted))
		assert.Equal(t, sent.ID, deleted.ID)
		assert.Equal(t, general.ID, deleted.ChannelID)
	})

	t.Run("leave stops delivery", func(t *testing.T) {
		member.Send(ws.EventTypeLeaveChannel, general.ID)
		member.ExpectEvent(ws.EventTypeLeftChannel, eventTimeout)

		resp := ts.Do(t, http.MethodPost, "/channels/"+general.ID.String()+"/messages", ownerToken, map[string]any{
			"content": "anyone there?",
		})
		testutil.DecodeJSON(t, resp, http.StatusCreated, nil)

		owner.ExpectEvent(service.EventMessageCreated, eventTimeout)
		member.ExpectNoEvent(service.EventMessageCreated, 200*time.Millisecond)
	})
}

func TestWebSocketRemovedMemberIsEvicted(t *testing.T) {
	for _, tc := range []struct {
		name   string
		remove func(general domain.Channel, memberID string) string
	}{
		{"from channel", func(general domain.Channel, memberID string) string {
			return "/channels/" + general.ID.String() + "/members/" + memberID
		}},
		{"from project", func(general domain.Channel, memberID string) string {
			return "/projects/" + general.ProjectID.String() + "/members/" + memberID
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ts := testutil.NewTestServer(t)
			_, ownerToken := ts.Register(t, "owner@example.com", "Olive Owner")
			memberID, memberToken := ts.Register(t, "member@example.com", "Max Member")
			general := teamChannel(t, ts, ownerToken, "member@example.com", memberToken)

			owner := testutil.NewWSClient(t, ts.WebSocketURL(ownerToken))
			member := testutil.NewWSClient(t, ts.WebSocketURL(memberToken))
			for _, c := range []*testutil.WSClient{owner, member} {
				c.Send(ws.EventTypeJoinChannel, general.ID)
				c.ExpectEvent(ws.EventTypeJoinedChannel, eventTimeout)
			}

			resp := ts.Do(t, http.MethodDelete, tc.remove(general, memberID.String()), ownerToken, nil)
			testutil.DecodeJSON(t, resp, http.StatusNoContent, nil)

			evt := member.ExpectEvent(ws.EventTypeLeftChannel, eventTimeout)
			require.NotNil(t, evt.ChannelID)
			assert.Equal(t, general.ID, *evt.ChannelID)

			resp = ts.Do(t, http.MethodPost, "/channels/"+general.ID.String()+"/messages", ownerToken, map[string]any{
				"content": "after removal",
			})
			testutil.DecodeJSON(t, resp, http.StatusCreated, nil)

			owner.ExpectEvent(service.EventMessageCreated, eventTimeout)
			member.ExpectNoEvent(service.EventMessageCreated, 200*time.Millisecond)

			member.Send(ws.EventTypeJoinChannel, general.ID)
			member.ExpectEvent(ws.EventTypeError, eventTimeout)
		})
	}
}
