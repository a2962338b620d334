// Package alert detects new journal issues for subscribed users and sends
// the notification e-mails. The notified map remembers which issue ids a
// realm has already been told about so reruns never notify twice.
package alert

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/kvmap"
	"github.com/ubtk/marctk/pkg/solr"
)

// Issue is one newly published issue of a subscribed serial.
type Issue struct {
	ControlNumber        string
	SeriesTitle          string
	IssueTitle           string
	LastModificationTime string
	Authors              []string
}

const (
	noAvailableTitle = "*No available title*"
	noSeriesTitle    = "*No Series Title*"
)

// ToZuluDate converts "2017-01-01 00:00:00" to "2017-01-01T00:00:00Z".
func ToZuluDate(date string) (string, error) {
	if len(date) != 19 || date[10] != ' ' {
		return "", fmt.Errorf("unexpected datetime %q", date)
	}
	return date[:10] + "T" + date[11:] + "Z", nil
}

// FromZuluDate converts "2017-01-01T00:00:00Z" back to
// "2017-01-01 00:00:00".
func FromZuluDate(date string) (string, error) {
	if len(date) != 20 || date[10] != 'T' || date[19] != 'Z' {
		return "", fmt.Errorf("unexpected datetime %q", date)
	}
	return date[:10] + " " + date[11:19], nil
}

// NewIssueQuery builds the Solr query for issues of a serial that appeared
// after lastModificationTime. Issues older than two calendar years are
// ignored, matching the alerting window of the subscription UI.
func NewIssueQuery(serialControlNumber, lastModificationTime string, now time.Time) string {
	yearCurrent := now.Year()
	yearMin := yearCurrent - 2
	return fmt.Sprintf("superior_ppn:%s AND last_modification_time:{%s TO *} AND year:[%d TO %d]",
		serialControlNumber, lastModificationTime, yearMin, yearCurrent)
}

// ExtractNewIssues filters the Solr documents down to issues the notified
// map has not seen. Newly seen issue ids are added to newNotificationIDs and
// maxLastModificationTime is advanced. It reports whether the maximum
// advanced, i.e. whether a genuinely new issue appeared.
func ExtractNewIssues(docs []solr.Document, notified *kvmap.Store, newNotificationIDs map[string]bool,
	issues *[]Issue, maxLastModificationTime *string, logger *zap.Logger) (bool, error) {
	foundNewIssue := false
	for _, doc := range docs {
		if doc.ID == "" {
			return false, fmt.Errorf("solr document without an id")
		}
		alreadyNotified, err := notified.Has(doc.ID)
		if err != nil {
			return false, fmt.Errorf("checking notified map: %w", err)
		}
		if alreadyNotified || newNotificationIDs[doc.ID] {
			continue
		}
		newNotificationIDs[doc.ID] = true

		issueTitle := doc.Title
		if issueTitle == "" {
			logger.Warn("no title found for issue", zap.String("id", doc.ID))
			issueTitle = noAvailableTitle
		}
		seriesTitle, ok := doc.SeriesTitle()
		if !ok {
			logger.Warn("no series title found for issue", zap.String("id", doc.ID))
			seriesTitle = noSeriesTitle
		}
		if doc.LastModificationTime == "" {
			return false, fmt.Errorf("issue %s has no last_modification_time", doc.ID)
		}

		*issues = append(*issues, Issue{
			ControlNumber:        doc.ID,
			SeriesTitle:          seriesTitle,
			IssueTitle:           issueTitle,
			LastModificationTime: doc.LastModificationTime,
			Authors:              doc.Author,
		})

		if doc.LastModificationTime > *maxLastModificationTime {
			*maxLastModificationTime = doc.LastModificationTime
			foundNewIssue = true
		}
	}
	return foundNewIssue, nil
}

// RecordNotifiedIDs stores the newly notified issue ids with the time of
// notification.
func RecordNotifiedIDs(notified *kvmap.Store, ids map[string]bool, now time.Time) error {
	stamp := now.Format("2006-01-02 15:04:05")
	for id := range ids {
		if err := notified.Set(id, stamp); err != nil {
			return fmt.Errorf("recording notified id %s: %w", id, err)
		}
	}
	return nil
}
