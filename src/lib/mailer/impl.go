package mailer

import (
	"fmt"
	"os"
	"tcs/src/lib"

	"github.com/wneessen/go-mail"
)

type SendMailInput struct {
	To      string
	Subject string
	Body    string
	Html    string
}

// SendTransactional delivers a one-off notification mail. Callers on the
// purchase path treat this as fire-and-forget: a delivery failure is theirs
// to log, never to propagate.
func SendTransactional(input *SendMailInput) error {
	from := os.Getenv("MAIL_FROM")
	client, err := lib.GetSMTPClient()
	if err != nil {
		return err
	}
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return fmt.Errorf("invalid sender address %s: %s", from, err.Error())
	}
	if err := msg.To(input.To); err != nil {
		return fmt.Errorf("invalid recipient address %s: %s", input.To, err.Error())
	}
	msg.Subject(input.Subject)
	msg.SetBodyString(mail.TypeTextPlain, input.Body)
	if input.Html != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, input.Html)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending mail to %s: %s", input.To, err.Error())
	}
	return nil
}
