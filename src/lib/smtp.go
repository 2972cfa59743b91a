package lib

import (
	"log"
	"os"
	"strconv"

	"github.com/wneessen/go-mail"
)

var smtpClient *mail.Client

func GetSMTPClient() (*mail.Client, error) {
	if smtpClient != nil {
		return smtpClient, nil
	}
	host := os.Getenv("SMTP_HOST")
	portEnv := os.Getenv("SMTP_PORT")
	port, err := strconv.Atoi(portEnv)
	if err != nil {
		port = 587
	}
	user := os.Getenv("SMTP_USERNAME")
	pass := os.Getenv("SMTP_PASSWORD")
	c, err := mail.NewClient(
		host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(user),
		mail.WithPassword(pass),
	)
	if err != nil {
		log.Printf("Could not initialize smtp client: %s\n", err.Error())
		return nil, err
	}
	smtpClient = c
	return c, nil
}

// NewSMTPClient Replace smtp instance with custom client implementation
func NewSMTPClient(c *mail.Client) *mail.Client {
	smtpClient = c
	return smtpClient
}
