package email

import (
	"bytes"
	"html/template"
)

const (
	subjectOTP             = "Online IDE - Your OTP for Email Verification"
	subjectPasswordChanged = "Online IDE - Password Change Notification"
	subjectUsernameChanged = "Online IDE - Username Change Notification"
	subjectAccountDeleted  = "Online IDE - Account Deletion Notice"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "otp"}}<html>
<body>
<h2>Welcome to Our Online IDE!</h2>
<p>We received a request to verify your email address.</p>
<p>To complete your email verification, please use the OTP below:</p>
<h3 style="color: #4CAF50;">Your OTP: <strong>{{.Code}}</strong></h3>
<p><i>This OTP will expire in {{.Minutes}} minutes. If you did not request this, please ignore this email.</i></p>
<p>Thank you for choosing our service!</p>
</body>
</html>{{end}}
{{define "password_changed"}}<html>
<body>
<h2>Password Changed</h2>
<p>Your Online IDE account password has been successfully changed.</p>
<p>If you did not request this change, please contact support immediately.</p>
<p>Thank you for using Online IDE.</p>
</body>
</html>{{end}}
{{define "username_changed"}}<html>
<body>
<h2>Username Changed</h2>
<p>Your Online IDE account username has been successfully changed.</p>
<p>Old Username: <strong>{{.Old}}</strong></p>
<p>New Username: <strong>{{.New}}</strong></p>
<p>If you did not request this change, please contact support immediately.</p>
<p>Thank you for using Online IDE.</p>
</body>
</html>{{end}}
{{define "account_deleted"}}<html>
<body>
<h2>Account Deleted</h2>
<p>Your Online IDE account has been deleted.</p>
<p>Thank you for having been a part of Online IDE.</p>
</body>
</html>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
