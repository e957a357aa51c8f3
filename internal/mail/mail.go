// Package mail delivers rendered notifications over SMTP.
package mail

import "context"

// Message is one outbound notification.
type Message struct {
	From        string
	To          string
	CC          []string
	Subject     string
	Body        string
	ReadReceipt bool
}

// Recipients returns the full envelope recipient list: To plus CC, with the
// To address deduplicated out of the CC list.
func (m Message) Recipients() []string {
	out := []string{m.To}
	seen := map[string]bool{m.To: true}
	for _, cc := range m.CC {
		if cc == "" || seen[cc] {
			continue
		}
		seen[cc] = true
		out = append(out, cc)
	}
	return out
}

// Transport sends messages. The SMTP implementation is the production one;
// tests substitute fakes.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
