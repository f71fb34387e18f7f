package event

type Type string

const (
	TypeItemHeld        Type = "recycle.held"
	TypeItemRestored    Type = "recycle.restored"
	TypeItemPurged      Type = "recycle.purged"
	TypeBinEmptied      Type = "recycle.emptied"
	TypeBinSwept        Type = "recycle.swept"
	TypeDocumentChanged Type = "document.changed"
	TypePaymentCreated  Type = "payment.created"
	TypeExpenseCreated  Type = "expense.created"
	TypeMemberCreated   Type = "member.created"
	TypeProjectCreated  Type = "project.created"
	TypeSettingsChanged Type = "settings.changed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // channel and unsubscribe function
}
