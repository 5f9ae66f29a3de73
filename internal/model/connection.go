package model

type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "ACTIVE"
	ConnectionSent     ConnectionStatus = "SENT"
	ConnectionReceived ConnectionStatus = "RECEIVED"
)

// UserConnection is a pairwise relation. The audit created_by is the
// requester; Connected false means pending. Queries treat the pair as
// undirected, status is relative to the viewing side.
type UserConnection struct {
	Base
	SoftDelete
	Audit
	ReceiverID uint  `gorm:"index;not null" json:"receiver_id"`
	Receiver   *User `json:"receiver,omitempty"`
	Connected  bool  `gorm:"index" json:"connected"`
}

// StatusFor classifies the row relative to one side of the pair.
func (c *UserConnection) StatusFor(userID uint) ConnectionStatus {
	if c.Connected {
		return ConnectionActive
	}
	if c.CreatedByID != nil && *c.CreatedByID == userID {
		return ConnectionSent
	}
	return ConnectionReceived
}

// OtherSide returns the counterpart's user id.
func (c *UserConnection) OtherSide(userID uint) uint {
	if c.CreatedByID != nil && *c.CreatedByID == userID {
		return c.ReceiverID
	}
	if c.CreatedByID != nil {
		return *c.CreatedByID
	}
	return c.ReceiverID
}
