package router_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/testutil"
)

func TestHealth(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.Server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := testutil.NewTestServer(t)

	for _, path := range []string{"/projects", "/me/tasks", "/notifications", "/invitations", "/dm", "/auth/me"} {
		resp := ts.Do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := testutil.NewTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.APIURL("/projects"), nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProjectLifecycle(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ownerID, ownerToken := ts.Register(t, "owner@example.com", "Olive")
	_, strangerToken := ts.Register(t, "stranger@example.com", "Sam")

	resp := ts.Do(t, http.MethodPost, "/projects", ownerToken, map[string]any{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var project domain.Project
	resp = ts.Do(t, http.MethodPost, "/projects", ownerToken, map[string]any{
		"name":                  "Apollo",
		"with_default_channels": true,
	})
	testutil.DecodeJSON(t, resp, http.StatusCreated, &project)
	assert.Equal(t, "Apollo", project.Name)
	assert.Equal(t, domain.ProjectRoleOwner, project.Role)

	var projects []domain.Project
	resp = ts.Do(t, http.MethodGet, "/projects", ownerToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &projects)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)

	resp = ts.Do(t, http.MethodGet, "/projects/"+project.ID.String(), strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.Do(t, http.MethodGet, "/projects/not-a-uuid", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var members []domain.ProjectMember
	resp = ts.Do(t, http.MethodGet, "/projects/"+project.ID.String()+"/members", ownerToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &members)
	require.Len(t, members, 1)
	assert.Equal(t, ownerID, members[0].UserID)

	var channels []domain.Channel
	resp = ts.Do(t, http.MethodGet, "/projects/"+project.ID.String()+"/channels", ownerToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &channels)
	assert.Len(t, channels, 2)

	var task domain.Task
	resp = ts.Do(t, http.MethodPost, "/projects/"+project.ID.String()+"/tasks", ownerToken, map[string]any{
		"title": "Write launch plan",
	})
	testutil.DecodeJSON(t, resp, http.StatusCreated, &task)
	assert.Equal(t, "Write launch plan", task.Title)

	resp = ts.Do(t, http.MethodDelete, "/projects/"+project.ID.String(), ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The membership went with the project.
	resp = ts.Do(t, http.MethodGet, "/projects/"+project.ID.String(), ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDirectMessages(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, aliceToken := ts.Register(t, "alice@example.com", "Alice")
	bobID, bobToken := ts.Register(t, "bob@example.com", "Bob")

	var first, second domain.Channel
	resp := ts.Do(t, http.MethodPost, "/dm/"+bobID.String(), aliceToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &first)
	assert.Equal(t, domain.ChannelTypePrivateDM, first.Type)

	resp = ts.Do(t, http.MethodPost, "/dm/"+bobID.String(), aliceToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &second)
	assert.Equal(t, first.ID, second.ID)

	var bobChannels []domain.Channel
	resp = ts.Do(t, http.MethodGet, "/dm", bobToken, nil)
	testutil.DecodeJSON(t, resp, http.StatusOK, &bobChannels)
	require.Len(t, bobChannels, 1)
	assert.Equal(t, first.ID, bobChannels[0].ID)
}
