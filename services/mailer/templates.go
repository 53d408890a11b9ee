package mailer

import (
	"fmt"
	"html"
	"time"
)

// CertificateEmail is the content of the message that carries an issued certificate.
type CertificateEmail struct {
	Organization    string
	FullName        string
	CourseName      string
	VerificationURL string
}

func (e CertificateEmail) Subject() string {
	return "Certificate of Completion: " + e.CourseName
}

func (e CertificateEmail) Text() string {
	return fmt.Sprintf("Dear %s,\n\nCongratulations on completing %s! Please find your certificate attached.\n\nVerify your certificate at: %s\n\nBest regards,\n%s",
		e.FullName, e.CourseName, e.VerificationURL, e.Organization)
}

func (e CertificateEmail) HTML() string {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>You have successfully completed the course: <strong>%s</strong></p>
		<p>Your certificate is attached to this email.</p>
		<div class="info-box">Anyone can confirm this certificate using the verification link below.</div>
		<a href="%s" class="btn">Verify Certificate</a>
		<p style="margin-top: 30px;">Best regards,<br>%s</p>`,
		html.EscapeString(e.FullName),
		html.EscapeString(e.CourseName),
		html.EscapeString(e.VerificationURL),
		html.EscapeString(e.Organization))
	return emailTemplate(e.Organization, "Congratulations "+html.EscapeString(e.FullName)+"!", body)
}

// emailTemplate wraps content in the shared branded layout.
func emailTemplate(org, title, bodyContent string) string {
	org = html.EscapeString(org)
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; box-shadow: 0 4px 15px rgba(0,0,0,0.05); }
			.header { background-color: #00004D; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #00004D; line-height: 1.6; }
			.content h2 { color: #00004D; margin-top: 0; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; border-top: 1px solid #E0E0E0; }
			.btn { display: inline-block; padding: 12px 24px; background-color: #d7b56d; color: #FFFFFF; text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 20px; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #d7b56d; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>%s</h1>
			</div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">
				&copy; %d %s. All rights reserved.
			</div>
		</div>
	</body>
	</html>
	`, org, title, bodyContent, time.Now().Year(), org)
}
