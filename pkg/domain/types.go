package domain

import (
	"strings"
	"time"
)

type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusDisabled AccountStatus = "disabled"
)

type LendTo string

const (
	LendSameFloor    LendTo = "Same Floor"
	LendSameBuilding LendTo = "Same Building"
	LendAnyone       LendTo = "Anyone"
)

type RequestStatus string

const (
	RequestOpen      RequestStatus = "open"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestClosed    RequestStatus = "closed"
)

// Locations are the four Sandburg residence wings. Floor ceilings are
// exclusive: the highest valid floor is ceiling-1.
const (
	LocationNorth = "Sandburg North"
	LocationSouth = "Sandburg South"
	LocationEast  = "Sandburg East"
	LocationWest  = "Sandburg West"
)

// FloorCeilings maps each wing to its exclusive floor ceiling.
var FloorCeilings = map[string]int{
	LocationNorth: 22,
	LocationSouth: 18,
	LocationEast:  27,
	LocationWest:  17,
}

// Account is an identity-provider account. The board never stores one; it
// only ever sees the resolved Subject.
type Account struct {
	UID          string        `json:"uid"`
	Email        string        `json:"email"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Status       AccountStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Subject is the authenticated identity resolved from a session credential.
type Subject struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// User is a resident profile stored at users/{uid}. The uid is assigned by
// the identity provider and never changes.
type User struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Location  string    `json:"location"`
	Floor     int       `json:"floor"`
	IsActive  bool      `json:"isActive"`
	ShowDorm  bool      `json:"showDorm"`
	ShowFloor bool      `json:"showFloor"`
	Created   time.Time `json:"created"`
}

// Appliance is a lendable appliance listing stored at appliances/{id}.
type Appliance struct {
	ApplianceID   string    `json:"applianceId"`
	OwnerUID      string    `json:"ownerUid"`
	OwnerUsername string    `json:"ownerUsername"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	TimeAvailable float64   `json:"timeAvailable"`
	LendTo        LendTo    `json:"lendTo"`
	IsVisible     bool      `json:"isVisible"`
	PhotoKey      string    `json:"photoKey,omitempty"`
	Created       time.Time `json:"created"`
}

// Request is a borrow request stored at requests/{id}. applianceName is free
// text, not a reference to an Appliance.
type Request struct {
	RequestID       string        `json:"requestId"`
	RequesterEmail  string        `json:"requesterEmail"`
	ApplianceName   string        `json:"applianceName"`
	Status          RequestStatus `json:"status"`
	Collateral      bool          `json:"collateral"`
	RequestDuration int           `json:"requestDuration"`
	Created         time.Time     `json:"created"`
}

// Message is one direct message stored at
// messages/{conversationKey}/{messageId}. Timestamp is server-assigned epoch
// milliseconds.
type Message struct {
	MessageID    string `json:"messageId"`
	SenderUID    string `json:"senderUid"`
	RecipientUID string `json:"recipientUid"`
	Text         string `json:"text"`
	Timestamp    int64  `json:"timestamp"`
}

// ConversationKey returns the canonical identifier for a two-party thread:
// the participant uids sorted lexicographically and joined with "_". Both
// participants compute the same key regardless of who sends first.
func ConversationKey(uidA, uidB string) string {
	if strings.Compare(uidA, uidB) > 0 {
		uidA, uidB = uidB, uidA
	}
	return uidA + "_" + uidB
}

// Participant reports whether uid is one of the two conversation parties.
func Participant(uid, uidA, uidB string) bool {
	return uid == uidA || uid == uidB
}
