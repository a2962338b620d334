package alert

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/kvmap"
	"github.com/ubtk/marctk/pkg/solr"
)

func openTestStore(t *testing.T) *kvmap.Store {
	t.Helper()
	store, err := kvmap.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestZuluDateConversions(t *testing.T) {
	zulu, err := ToZuluDate("2017-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2017-01-01T00:00:00Z", zulu)

	local, err := FromZuluDate(zulu)
	require.NoError(t, err)
	assert.Equal(t, "2017-01-01 00:00:00", local)

	_, err = ToZuluDate("2017-01-01")
	assert.Error(t, err)
	_, err = FromZuluDate("2017-01-01 00:00:00")
	assert.Error(t, err)
}

func TestNewIssueQuery(t *testing.T) {
	now := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	query := NewIssueQuery("100011477", "2017-01-01T00:00:00Z", now)
	assert.Equal(t,
		"superior_ppn:100011477 AND last_modification_time:{2017-01-01T00:00:00Z TO *} AND year:[2016 TO 2018]",
		query)
}

func TestExtractNewIssues(t *testing.T) {
	notified := openTestStore(t)
	require.NoError(t, notified.Set("already-seen", "2018-01-01 00:00:00"))

	docs := []solr.Document{
		{
			ID:                    "new-issue-1",
			Title:                 "Heft 3",
			Author:                []string{"Musterfrau, Erika"},
			LastModificationTime:  "2018-05-01T12:00:00Z",
			ContainerIDsAndTitles: []string{"100011477\x1FZeitschrift für Theologie\x1F3"},
		},
		{
			ID:                   "already-seen",
			Title:                "Heft 2",
			LastModificationTime: "2018-04-01T12:00:00Z",
		},
		{
			ID:                   "new-issue-2",
			LastModificationTime: "2018-03-01T12:00:00Z",
		},
	}

	newNotificationIDs := make(map[string]bool)
	var issues []Issue
	maxLastModificationTime := "2018-01-01T00:00:00Z"
	foundNew, err := ExtractNewIssues(docs, notified, newNotificationIDs, &issues,
		&maxLastModificationTime, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, foundNew)
	assert.Equal(t, "2018-05-01T12:00:00Z", maxLastModificationTime)
	assert.Equal(t, map[string]bool{"new-issue-1": true, "new-issue-2": true}, newNotificationIDs)

	require.Len(t, issues, 2)
	assert.Equal(t, "Zeitschrift für Theologie", issues[0].SeriesTitle)
	assert.Equal(t, "Heft 3", issues[0].IssueTitle)
	assert.Equal(t, []string{"Musterfrau, Erika"}, issues[0].Authors)
	assert.Equal(t, "*No available title*", issues[1].IssueTitle)
	assert.Equal(t, "*No Series Title*", issues[1].SeriesTitle)

	// A second pass over the same documents finds nothing new.
	foundNew, err = ExtractNewIssues(docs, notified, newNotificationIDs, &issues,
		&maxLastModificationTime, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, foundNew)
	assert.Len(t, issues, 2)
}

func TestExtractNewIssues_MissingLastModificationTime(t *testing.T) {
	notified := openTestStore(t)
	docs := []solr.Document{{ID: "broken", Title: "Heft 1"}}

	var issues []Issue
	maxLastModificationTime := ""
	_, err := ExtractNewIssues(docs, notified, map[string]bool{}, &issues,
		&maxLastModificationTime, zap.NewNop())
	assert.Error(t, err)
}

func TestRecordNotifiedIDs(t *testing.T) {
	notified := openTestStore(t)
	now := time.Date(2018, 6, 1, 14, 30, 0, 0, time.UTC)

	require.NoError(t, RecordNotifiedIDs(notified, map[string]bool{"a": true, "b": true}, now))

	value, found, err := notified.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2018-06-01 14:30:00", value)
}

func TestRenderEmail(t *testing.T) {
	issues := []Issue{
		{
			ControlNumber: "123456789",
			SeriesTitle:   "Zeitschrift für Theologie",
			IssueTitle:    "Glaube & Wissen",
			Authors:       []string{"Musterfrau, Erika"},
		},
	}
	body, err := RenderEmail(DefaultEmailTemplate, "Max", "Mustermann", "vufind.example.org", issues)
	require.NoError(t, err)

	assert.Contains(t, body, "Dear Max Mustermann")
	assert.Contains(t, body, "https://vufind.example.org/Record/123456789")
	assert.Contains(t, body, "Zeitschrift für Theologie")
	assert.Contains(t, body, "Glaube &amp; Wissen") // issue titles are HTML-escaped
	assert.Contains(t, body, "Musterfrau, Erika")
}

func TestUserAndSubscriptionStorage(t *testing.T) {
	store := openTestStore(t)

	user := User{ID: "1", FirstName: "Max", LastName: "Mustermann", Email: "max@example.org", UserType: "ixtheo"}
	require.NoError(t, SaveUser(store, user))

	loaded, err := LoadUser(store, "1")
	require.NoError(t, err)
	assert.Equal(t, user, loaded)

	_, err = LoadUser(store, "2")
	assert.Error(t, err)

	require.NoError(t, SaveUser(store, User{ID: "2", UserType: "relbib"}))
	var visited []string
	require.NoError(t, EachUser(store, "ixtheo", func(u User) error {
		visited = append(visited, u.ID)
		return nil
	}))
	assert.Equal(t, []string{"1"}, visited)

	require.NoError(t, SaveSubscription(store, Subscription{
		UserID:                  "1",
		SerialControlNumber:     "100011477",
		MaxLastModificationTime: "2018-01-01 00:00:00",
	}))
	subs, err := Subscriptions(store, "1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "100011477", subs[0].SerialControlNumber)
	assert.Equal(t, "2018-01-01 00:00:00", subs[0].MaxLastModificationTime)
}

func TestPatchSubscriptions(t *testing.T) {
	store := openTestStore(t)

	// User 1 is subscribed only to the dropped PPN, user 2 to both.
	require.NoError(t, SaveSubscription(store, Subscription{
		UserID: "1", SerialControlNumber: "999999999", MaxLastModificationTime: "2018-03-01 00:00:00"}))
	require.NoError(t, SaveSubscription(store, Subscription{
		UserID: "2", SerialControlNumber: "999999999", MaxLastModificationTime: "2018-03-01 00:00:00"}))
	require.NoError(t, SaveSubscription(store, Subscription{
		UserID: "2", SerialControlNumber: "100011477", MaxLastModificationTime: "2018-01-01 00:00:00"}))

	patched, err := PatchSubscriptions(store, map[string]string{"999999999": "100011477"})
	require.NoError(t, err)
	assert.Equal(t, 2, patched)

	subs, err := Subscriptions(store, "1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "100011477", subs[0].SerialControlNumber)
	assert.Equal(t, "2018-03-01 00:00:00", subs[0].MaxLastModificationTime)

	// The merged subscription keeps the earlier timestamp so nothing
	// between the two is missed.
	subs, err = Subscriptions(store, "2")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "100011477", subs[0].SerialControlNumber)
	assert.Equal(t, "2018-01-01 00:00:00", subs[0].MaxLastModificationTime)
}
