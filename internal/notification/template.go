// Package notification は管理者向け通知メールとサインアップ確認メールの送信を提供する。
package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/hitoshi/memoria/internal/model"
)

// Message は送信可能な状態に組み立てたメール1通。
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Subject は通知種別ごとの件名を返す。
func Subject(t model.NotificationType) string {
	switch t {
	case model.NotificationSignIn:
		return "New Sign In Detected"
	case model.NotificationSignUp:
		return "New User Registration"
	case model.NotificationSetup:
		return "User Profile Setup"
	}
	return "User Activity Notification"
}

// Content は通知種別ごとの本文を返す。
func Content(n model.Notification) string {
	switch n.Type {
	case model.NotificationSignIn:
		return fmt.Sprintf("User %s (ID: %s) has signed in.", n.User.Email, n.User.ID)
	case model.NotificationSignUp:
		return fmt.Sprintf("A new user has registered: %s (ID: %s)", n.User.Email, n.User.ID)
	case model.NotificationSetup:
		return fmt.Sprintf("User %s (ID: %s) has completed their profile setup.", n.User.Email, n.User.ID)
	}
	return fmt.Sprintf("User %s (ID: %s): %s", n.User.Email, n.User.ID, n.Details)
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; background-color: #f8fafc;">
    <table role="presentation" style="max-width: 560px; margin: 40px auto; background-color: #ffffff; border-radius: 12px;">
        <tr>
            <td style="padding: 32px;">
                <h2 style="margin: 0 0 16px; color: #1e293b;">{{.Subject}}</h2>
                <p style="margin: 0 0 16px; font-size: 16px; line-height: 24px; color: #334155;">{{.Content}}</p>
                <p style="margin: 0 0 24px; font-size: 13px; color: #64748b;">Time: {{.Timestamp}}</p>
                <hr style="border: none; border-top: 1px solid #e2e8f0; margin: 24px 0;">
                <p style="margin: 0; font-size: 12px; color: #94a3b8;">This is an automated notification from Memoria.</p>
            </td>
        </tr>
    </table>
</body>
</html>`))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Confirm your email</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; background-color: #f8fafc;">
    <table role="presentation" style="max-width: 480px; margin: 40px auto; background-color: #ffffff; border-radius: 16px;">
        <tr>
            <td style="padding: 40px; text-align: center;">
                <h1 style="margin: 0 0 16px; font-size: 24px; color: #1e293b;">Confirm your email</h1>
                <p style="margin: 0 0 24px; font-size: 16px; line-height: 24px; color: #64748b;">Click the button below to finish creating your Memoria account.</p>
                <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #3b82f6; color: #ffffff; text-decoration: none; border-radius: 12px;">Confirm email</a>
                <p style="margin: 24px 0 0; font-size: 12px; word-break: break-all; color: #3b82f6;">{{.Link}}</p>
            </td>
        </tr>
    </table>
</body>
</html>`))

// RenderNotification は管理者宛の通知メールを組み立てる。
func RenderNotification(to string, n model.Notification, at time.Time) (Message, error) {
	subject := Subject(n.Type)
	content := Content(n)
	timestamp := at.UTC().Format(time.RFC1123)

	var buf bytes.Buffer
	err := notificationTemplate.Execute(&buf, map[string]string{
		"Subject":   subject,
		"Content":   content,
		"Timestamp": timestamp,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render notification: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\nTime: %s\n\n---\nThis is an automated notification from Memoria.\n", subject, content, timestamp)
	return Message{To: to, Subject: subject, TextBody: text, HTMLBody: buf.String()}, nil
}

// RenderConfirmation はサインアップ確認メールを組み立てる。
func RenderConfirmation(to, link string) (Message, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, map[string]string{"Link": link}); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}
	text := fmt.Sprintf("Confirm your email\n\nOpen the link below to finish creating your Memoria account.\n\n%s\n\nIf you didn't sign up, you can safely ignore this email.\n", link)
	return Message{To: to, Subject: "Confirm your email", TextBody: text, HTMLBody: buf.String()}, nil
}
