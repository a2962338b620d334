package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/alert"
	"github.com/ubtk/marctk/pkg/kvmap"
	"github.com/ubtk/marctk/pkg/solr"
)

const bundleRefPrefix = "bundle:"

var alertDebug bool

// journalAlertCmd notifies subscribed users of newly appeared journal
// issues.
var journalAlertCmd = &cobra.Command{
	Use:   "journal-alert <user_type> <hostname> <sender_email> <email_subject>",
	Short: "E-mail subscribed users about new journal issues",
	Long: `Query the catalog for issues of subscribed serials that appeared since
each subscription's last notification and e-mail the subscribers. The
hostname is used to build the record links in the notification. With --debug
the rendered e-mails go to stdout and no state is updated.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJournalAlert(cmd, args[0], args[1], args[2], args[3], alertDebug)
	},
}

// expandBundles resolves "bundle:<name>" subscriptions to the serial control
// numbers the bundle covers, each carrying the bundle's timestamp.
func expandBundles(subs []alert.Subscription, bundles map[string][]string,
	logger *zap.Logger) []alert.Subscription {
	var expanded []alert.Subscription
	for _, sub := range subs {
		if !strings.HasPrefix(sub.SerialControlNumber, bundleRefPrefix) {
			expanded = append(expanded, sub)
			continue
		}
		bundleName := strings.TrimPrefix(sub.SerialControlNumber, bundleRefPrefix)
		serials, ok := bundles[bundleName]
		if !ok {
			logger.Warn("subscription references an unknown bundle",
				zap.String("user", sub.UserID), zap.String("bundle", bundleName))
			continue
		}
		for _, serial := range serials {
			expanded = append(expanded, alert.Subscription{
				UserID:                  sub.UserID,
				SerialControlNumber:     serial,
				MaxLastModificationTime: sub.MaxLastModificationTime,
			})
		}
	}
	return expanded
}

// loadEmailTemplate returns the template configured for the user type or the
// built-in default.
func loadEmailTemplate(userType string) (string, error) {
	path, ok := cfg.EmailTemplates[userType]
	if !ok {
		return alert.DefaultEmailTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading e-mail template for %q: %w", userType, err)
	}
	return string(data), nil
}

// processUser collects this user's new issues, sends the notification and
// returns the subscriptions whose timestamps advanced.
func processUser(cmd *cobra.Command, user alert.User, subscriptions, notified *kvmap.Store,
	solrClient *solr.Client, mailer *alert.Mailer, templateText, hostname, subject string,
	newNotificationIDs map[string]bool, now time.Time, debug bool, logger *zap.Logger) error {
	subs, err := alert.Subscriptions(subscriptions, user.ID)
	if err != nil {
		return err
	}
	subs = expandBundles(subs, cfg.Bundles, logger)

	var issues []alert.Issue
	var advanced []alert.Subscription
	for _, sub := range subs {
		zuluTime, err := alert.ToZuluDate(sub.MaxLastModificationTime)
		if err != nil {
			return fmt.Errorf("subscription %s/%s: %w", user.ID, sub.SerialControlNumber, err)
		}

		query := alert.NewIssueQuery(sub.SerialControlNumber, zuluTime, now)
		docs, err := solrClient.Select(query, "id,title,author,last_modification_time,container_ids_and_titles")
		if err != nil {
			return fmt.Errorf("querying new issues of %s: %w", sub.SerialControlNumber, err)
		}

		maxLastModificationTime := zuluTime
		foundNew, err := alert.ExtractNewIssues(docs, notified, newNotificationIDs, &issues,
			&maxLastModificationTime, logger)
		if err != nil {
			return err
		}
		if foundNew {
			localTime, err := alert.FromZuluDate(maxLastModificationTime)
			if err != nil {
				return err
			}
			sub.MaxLastModificationTime = localTime
			advanced = append(advanced, sub)
		}
	}

	if len(issues) == 0 {
		return nil
	}

	body, err := alert.RenderEmail(templateText, user.FirstName, user.LastName, hostname, issues)
	if err != nil {
		return err
	}

	if debug {
		fmt.Fprintf(cmd.OutOrStdout(), "To: %s\nSubject: %s\n\n%s\n", user.Email, subject, body)
		return nil
	}

	if err := mailer.Send(user.Email, subject, body); err != nil {
		return err
	}
	logger.Info("sent notification",
		zap.String("user", user.ID),
		zap.Int("new_issues", len(issues)))

	// Only advance timestamps once the mail went out, so a failed send
	// retries the same issues on the next run.
	for _, sub := range advanced {
		if err := alert.SaveSubscription(subscriptions, sub); err != nil {
			return err
		}
	}
	return nil
}

func runJournalAlert(cmd *cobra.Command, userType, hostname, senderEmail, subject string, debug bool) error {
	subscriptions, err := kvmap.Open(filepath.Join(cfg.DataDir, "subscriptions.db"))
	if err != nil {
		return err
	}
	defer subscriptions.Close()

	notified, err := kvmap.Open(filepath.Join(cfg.DataDir, "notified."+userType+".db"))
	if err != nil {
		return err
	}
	defer notified.Close()

	templateText, err := loadEmailTemplate(userType)
	if err != nil {
		return err
	}

	solrClient := solr.NewClient(cfg.Solr.HostAndPort, time.Duration(cfg.Solr.TimeoutSeconds)*time.Second)
	mailer := &alert.Mailer{HostAndPort: cfg.SMTP.HostAndPort, Sender: senderEmail}

	now := time.Now()
	newNotificationIDs := make(map[string]bool)
	userCount := 0
	err = alert.EachUser(subscriptions, userType, func(user alert.User) error {
		userCount++
		return processUser(cmd, user, subscriptions, notified, solrClient, mailer,
			templateText, hostname, subject, newNotificationIDs, now, debug, logger)
	})
	if err != nil {
		return err
	}

	if !debug {
		if err := alert.RecordNotifiedIDs(notified, newNotificationIDs, now); err != nil {
			return err
		}
	}

	logger.Info("alerting finished",
		zap.Int("users", userCount),
		zap.Int("notified_issues", len(newNotificationIDs)))
	return nil
}

func init() {
	journalAlertCmd.Flags().BoolVar(&alertDebug, "debug", false, "Print e-mails to stdout instead of sending them")
	rootCmd.AddCommand(journalAlertCmd)
}
