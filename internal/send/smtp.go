package send

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/mumail/internal/credential"
	"github.com/nhle/mumail/internal/maildir"
	"github.com/nhle/mumail/internal/model"
)

const commandTimeout = 30 * time.Second

// Transport submits built messages.
type Transport interface {
	Send(ctx context.Context, msg *Built) error
}

// SMTP submits to one account's server.
type SMTP struct {
	Config   model.SMTPConfig
	Password string

	// TLSConfig overrides the default for ssl and starttls.
	TLSConfig *tls.Config
}

// NewSMTP resolves the account's password and returns a transport for it.
func NewSMTP(ctx context.Context, acct model.AccountConfig, ring credential.Getter) (*SMTP, error) {
	if acct.SMTP.Host == "" {
		return nil, fmt.Errorf("account %q has no smtp host", acct.Name)
	}
	s := &SMTP{Config: acct.SMTP}
	if acct.SMTP.Username == "" {
		return s, nil
	}
	pw, err := credential.Resolve(ctx, credential.Source{
		Command: acct.SMTP.PasswordCommand,
		Key:     credential.SMTPKey(acct.Name),
		Plain:   acct.SMTP.Password,
	}, ring)
	if err != nil {
		return nil, fmt.Errorf("smtp password for %s: %w", acct.Name, err)
	}
	s.Password = pw
	return s, nil
}

func (s *SMTP) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.Config.Host, strconv.Itoa(s.Config.Port))
	tlsConfig := s.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: s.Config.Host}
	}
	switch s.Config.Encryption {
	case "none":
		return smtp.Dial(addr)
	case "ssl":
		return smtp.DialTLS(addr, tlsConfig)
	default:
		return smtp.DialStartTLS(addr, tlsConfig)
	}
}

// Send delivers msg, authenticating with PLAIN when a username is set.
func (s *SMTP) Send(ctx context.Context, msg *Built) error {
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}

	type result struct{ err error }
	done := make(chan result, 1)
	var client *smtp.Client
	go func() {
		c, err := s.dial()
		if err == nil {
			client = c
			err = s.submit(c, msg)
		}
		done <- result{err}
	}()

	select {
	case r := <-done:
		if client != nil {
			client.Close()
		}
		return r.err
	case <-ctx.Done():
		go func() {
			<-done
			if client != nil {
				client.Close()
			}
		}()
		return ctx.Err()
	}
}

func (s *SMTP) submit(c *smtp.Client, msg *Built) error {
	c.CommandTimeout = commandTimeout
	c.SubmissionTimeout = commandTimeout

	if s.Config.Username != "" {
		auth := sasl.NewPlainClient("", s.Config.Username, s.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(msg.From, nil); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range msg.Recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg.Data); err != nil {
		w.Close()
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	return c.Quit()
}

// SaveToSent stores msg in the sent folder of a Maildir as already seen.
// It returns the new file's path.
func SaveToSent(maildirRoot, folder string, msg *Built) (string, error) {
	data := bytes.ReplaceAll(msg.Data, []byte("\r\n"), []byte("\n"))
	return maildir.Deliver(maildir.Folder(maildirRoot, folder), data, "S")
}
