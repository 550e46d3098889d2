package policy

import (
	"dormlend/pkg/domain"
)

// Decision is the outcome of an authorization check. Allowed decisions carry
// no reason; denied ones distinguish "not authenticated" from "authenticated
// but not permitted".
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CreateAppliance permits creation only when the declared owner is the
// authenticated subject.
func CreateAppliance(subject domain.Subject, ownerUID string) Decision {
	if ownerUID != subject.UID {
		return deny("ownerUid must match the authenticated user")
	}
	return Allow
}

// MutateAppliance permits update/delete only for the record's owner.
func MutateAppliance(subject domain.Subject, record domain.Appliance) Decision {
	if record.OwnerUID != subject.UID {
		return deny("only the owner may modify this appliance")
	}
	return Allow
}

// ApplianceVisible reports whether a listing shows up in a collection read
// for the given subject. Owners see their own hidden listings.
func ApplianceVisible(subject domain.Subject, record domain.Appliance) bool {
	return record.IsVisible || record.OwnerUID == subject.UID
}

// CreateRequest permits creation only when the declared requester email is
// the subject's verified email.
func CreateRequest(subject domain.Subject, requesterEmail string) Decision {
	if requesterEmail != subject.Email {
		return deny("requesterEmail must match the authenticated user's email")
	}
	return Allow
}

// MutateRequest permits status update/delete only for the requester,
// compared by verified email.
func MutateRequest(subject domain.Subject, record domain.Request) Decision {
	if record.RequesterEmail != subject.Email {
		return deny("only the requester may modify this request")
	}
	return Allow
}

// SendMessage permits sending only as oneself.
func SendMessage(subject domain.Subject, senderUID string) Decision {
	if senderUID != subject.UID {
		return deny("senderUid must match the authenticated user")
	}
	return Allow
}

// ReadConversation permits reading only for the two participants.
func ReadConversation(subject domain.Subject, uidA, uidB string) Decision {
	if !domain.Participant(subject.UID, uidA, uidB) {
		return deny("only conversation participants may read messages")
	}
	return Allow
}

// MutateUser permits profile update/delete only for the profile's owner.
func MutateUser(subject domain.Subject, record domain.User) Decision {
	if record.UID != subject.UID {
		return deny("only the profile owner may modify it")
	}
	return Allow
}
