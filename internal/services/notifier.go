package services

import (
	"github.com/oculab/gazetrack/internal/models"
)

// directSender is the slice of the hub the notifier needs.
type directSender interface {
	ToClient(c *Client, message *models.WSMessage)
}

// Notifier pushes invitation events to a user's private channel without
// coupling the persistence path to the transport layer. Delivery is best
// effort: the durable invitee record is the system of record, an offline
// identity simply misses the live push.
type Notifier struct {
	registry *Registry
	sender   directSender
}

func NewNotifier(registry *Registry, sender directSender) *Notifier {
	return &Notifier{
		registry: registry,
		sender:   sender,
	}
}

// NotifyInvitation delivers a new_invitation event if identity is currently
// connected. A no-op for offline identities.
func (n *Notifier) NotifyInvitation(identity string, session *models.Session) {
	c := n.registry.AddressOf(identity)
	if c == nil {
		return
	}

	n.sender.ToClient(c, &models.WSMessage{
		Type:      models.MsgTypeNewInvitation,
		SessionID: session.ID,
		Payload:   session,
	})
}
