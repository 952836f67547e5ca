package ddnsd

import (
	"context"
	"fmt"
	"net/netip"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// EmailOptions configures the SMTP notifier.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// NewEmail returns a Notifier that mails the new address list through
// the configured SMTP relay with PLAIN auth over STARTTLS (whatever
// net/smtp negotiates with the server).
func NewEmail(opts *EmailOptions) (Notifier, error) {
	if opts.Host == "" || opts.From == "" || len(opts.To) == 0 {
		return nil, errors.New("email notifier requires host, from, and at least one recipient")
	}
	port := opts.Port
	if port == 0 {
		port = 587
	}
	return &emailNotifier{
		addr: fmt.Sprintf("%s:%d", opts.Host, port),
		host: opts.Host,
		user: opts.Username,
		pass: opts.Password,
		from: opts.From,
		to:   opts.To,
	}, nil
}

type emailNotifier struct {
	addr string
	host string
	user string
	pass string
	from string
	to   []string
}

func (n *emailNotifier) Notify(ctx context.Context, addrs []netip.Addr) error {
	list := strings.Join(lo.Map(addrs, func(a netip.Addr, _ int) string { return a.String() }), ", ")
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&msg, "Subject: DNS records updated\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "The following addresses are now published: %s\r\n", list)

	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.pass, n.host)
	}
	if err := smtp.SendMail(n.addr, auth, n.from, n.to, []byte(msg.String())); err != nil {
		return errors.Wrapf(ErrDeliveryFailed, "sending mail via %s: %s", n.addr, err)
	}
	return nil
}
