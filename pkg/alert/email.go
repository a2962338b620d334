package alert

import (
	"bytes"
	"fmt"
	"html"
	"net/smtp"
	"text/template"

	"github.com/segmentio/ksuid"
)

// DefaultEmailTemplate renders the notification body when a realm ships no
// template of its own.
const DefaultEmailTemplate = `<html><body>
<p>Dear {{.FirstName}} {{.LastName}},</p>
<p>new issues have appeared for journals you are subscribed to:</p>
<ul>
{{range .Issues}}<li><a href="{{.URL}}">{{.SeriesTitle}}</a>: {{.IssueTitle}}{{if .Authors}} ({{range $i, $a := .Authors}}{{if $i}}, {{end}}{{$a}}{{end}}){{end}}</li>
{{end}}</ul>
</body></html>
`

// templateIssue is one issue as seen by the e-mail template.
type templateIssue struct {
	URL         string
	SeriesTitle string
	IssueTitle  string
	Authors     []string
}

type templateData struct {
	FirstName string
	LastName  string
	Issues    []templateIssue
}

// RenderEmail expands the notification template for one user.
func RenderEmail(templateText, firstName, lastName, vufindHost string, issues []Issue) (string, error) {
	tmpl, err := template.New("notification").Parse(templateText)
	if err != nil {
		return "", fmt.Errorf("parsing e-mail template: %w", err)
	}

	data := templateData{FirstName: firstName, LastName: lastName}
	for _, issue := range issues {
		data.Issues = append(data.Issues, templateIssue{
			URL:         "https://" + vufindHost + "/Record/" + issue.ControlNumber,
			SeriesTitle: issue.SeriesTitle,
			IssueTitle:  html.EscapeString(issue.IssueTitle),
			Authors:     issue.Authors,
		})
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("expanding e-mail template: %w", err)
	}
	return body.String(), nil
}

// Mailer sends notification e-mails through one SMTP relay.
type Mailer struct {
	HostAndPort string
	Sender      string
}

// Send delivers one HTML message. The Message-ID is a fresh ksuid so relays
// and clients can de-duplicate.
func (m *Mailer) Send(recipient, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMessage-ID: <%s@marctk>\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.Sender, recipient, subject, ksuid.New().String(), body)
	if err := smtp.SendMail(m.HostAndPort, nil, m.Sender, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("sending notification e-mail to %s: %w", recipient, err)
	}
	return nil
}
