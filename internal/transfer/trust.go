package transfer

// Trust remembers, for one session, who may send us files without asking
// and who has already accepted a file from us.
type Trust struct {
	senders    map[string]struct{}
	recipients map[string]struct{}
}

func NewTrust() *Trust {
	return &Trust{
		senders:    make(map[string]struct{}),
		recipients: make(map[string]struct{}),
	}
}

func (t *Trust) AllowSender(id string)    { t.senders[id] = struct{}{} }
func (t *Trust) AllowRecipient(id string) { t.recipients[id] = struct{}{} }

func (t *Trust) SenderAllowed(id string) bool {
	_, ok := t.senders[id]
	return ok
}

func (t *Trust) RecipientAllowed(id string) bool {
	_, ok := t.recipients[id]
	return ok
}
