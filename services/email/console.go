package emailsvc

import (
	"fmt"
	"io"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/sections/core"
)

type ConsoleService struct {
	from       mail.Address
	subjPrefix string
	out        io.Writer
	async      bool

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ConsoleService)(nil)

// NewConsoleService prints messages to out instead of sending them.
func NewConsoleService(conf *core.Config, out io.Writer) *ConsoleService {
	return &ConsoleService{
		from:       mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmail()},
		subjPrefix: "[" + conf.AppName + "] ",
		out:        out,
		async:      !conf.TestMode,
	}
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.async {
			go svc.sendMessage(msg)
		} else {
			svc.sendMessage(msg)
		}
	}
}

// Sent returns a copy of all messages printed so far.
func (svc *ConsoleService) Sent() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

func (svc *ConsoleService) sendMessage(msg *core.EmailMessage) {
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	_, _ = fmt.Fprint(body, "Content-Type: text/plain\r\n\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.BodyStr)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.out != nil {
		_, _ = io.WriteString(svc.out, body.String())
	}
	svc.sent = append(svc.sent, *msg)
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
