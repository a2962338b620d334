package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/alert"
	"github.com/ubtk/marctk/pkg/config"
	"github.com/ubtk/marctk/pkg/kvmap"
	"github.com/ubtk/marctk/pkg/solr"
)

func TestExpandBundles(t *testing.T) {
	bundles := map[string][]string{"theology": {"100011477", "100011478"}}
	subs := []alert.Subscription{
		{UserID: "1", SerialControlNumber: "bundle:theology", MaxLastModificationTime: "2018-01-01 00:00:00"},
		{UserID: "1", SerialControlNumber: "555555555", MaxLastModificationTime: "2018-02-01 00:00:00"},
		{UserID: "1", SerialControlNumber: "bundle:unknown", MaxLastModificationTime: "2018-03-01 00:00:00"},
	}

	expanded := expandBundles(subs, bundles, zap.NewNop())
	require.Len(t, expanded, 3)
	assert.Equal(t, "100011477", expanded[0].SerialControlNumber)
	assert.Equal(t, "2018-01-01 00:00:00", expanded[0].MaxLastModificationTime)
	assert.Equal(t, "100011478", expanded[1].SerialControlNumber)
	assert.Equal(t, "555555555", expanded[2].SerialControlNumber)
}

// fakeSolr serves a canned select response for any query.
func fakeSolr(t *testing.T, docs []solr.Document) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/solr/biblio/select", r.URL.Path)
		response := map[string]interface{}{
			"response": map[string]interface{}{
				"numFound": len(docs),
				"docs":     docs,
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
}

func TestProcessUser_Debug(t *testing.T) {
	cfg = config.DefaultConfig()
	logger = zap.NewNop()

	server := fakeSolr(t, []solr.Document{{
		ID:                    "300000001",
		Title:                 "Heft 3",
		Author:                []string{"Musterfrau, Erika"},
		LastModificationTime:  "2018-05-01T12:00:00Z",
		ContainerIDsAndTitles: []string{"100011477\x1FZeitschrift für Theologie"},
	}})
	defer server.Close()

	dir := t.TempDir()
	subscriptions, err := kvmap.Open(filepath.Join(dir, "subscriptions.db"))
	require.NoError(t, err)
	defer subscriptions.Close()
	notified, err := kvmap.Open(filepath.Join(dir, "notified.db"))
	require.NoError(t, err)
	defer notified.Close()

	user := alert.User{ID: "1", FirstName: "Max", LastName: "Mustermann", Email: "max@example.org", UserType: "ixtheo"}
	require.NoError(t, alert.SaveUser(subscriptions, user))
	require.NoError(t, alert.SaveSubscription(subscriptions, alert.Subscription{
		UserID:                  "1",
		SerialControlNumber:     "100011477",
		MaxLastModificationTime: "2018-01-01 00:00:00",
	}))

	solrClient := solr.NewClient(strings.TrimPrefix(server.URL, "http://"), 5*time.Second)
	mailer := &alert.Mailer{HostAndPort: "localhost:25", Sender: "noreply@example.org"}

	var out bytes.Buffer
	command := &cobra.Command{}
	command.SetOut(&out)

	newNotificationIDs := make(map[string]bool)
	err = processUser(command, user, subscriptions, notified, solrClient, mailer,
		alert.DefaultEmailTemplate, "vufind.example.org", "New issues", newNotificationIDs,
		time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC), true, logger)
	require.NoError(t, err)

	body := out.String()
	assert.Contains(t, body, "To: max@example.org")
	assert.Contains(t, body, "Subject: New issues")
	assert.Contains(t, body, "https://vufind.example.org/Record/300000001")
	assert.Contains(t, body, "Zeitschrift für Theologie")
	assert.Equal(t, map[string]bool{"300000001": true}, newNotificationIDs)

	// Debug runs must not advance the stored timestamp.
	subs, err := alert.Subscriptions(subscriptions, "1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "2018-01-01 00:00:00", subs[0].MaxLastModificationTime)
}

func TestProcessUser_NoNewIssues(t *testing.T) {
	cfg = config.DefaultConfig()
	logger = zap.NewNop()

	server := fakeSolr(t, nil)
	defer server.Close()

	dir := t.TempDir()
	subscriptions, err := kvmap.Open(filepath.Join(dir, "subscriptions.db"))
	require.NoError(t, err)
	defer subscriptions.Close()
	notified, err := kvmap.Open(filepath.Join(dir, "notified.db"))
	require.NoError(t, err)
	defer notified.Close()

	user := alert.User{ID: "1", Email: "max@example.org", UserType: "ixtheo"}
	require.NoError(t, alert.SaveSubscription(subscriptions, alert.Subscription{
		UserID:                  "1",
		SerialControlNumber:     "100011477",
		MaxLastModificationTime: "2018-01-01 00:00:00",
	}))

	solrClient := solr.NewClient(strings.TrimPrefix(server.URL, "http://"), 5*time.Second)

	var out bytes.Buffer
	command := &cobra.Command{}
	command.SetOut(&out)

	err = processUser(command, user, subscriptions, notified, solrClient, nil,
		alert.DefaultEmailTemplate, "vufind.example.org", "New issues", map[string]bool{},
		time.Now(), true, logger)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}
