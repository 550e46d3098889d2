package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"dormlend/pkg/domain"
)

// Error reports the first violated field and a human-readable reason.
type Error struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var valid = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(userFloorValidation, UserCreate{}, UserUpdate{})
	return v
}

// UserCreate is a full signup payload. Password goes to the identity
// provider, never to the record store.
type UserCreate struct {
	Username  string `json:"username" validate:"required,min=1,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Location  string `json:"location" validate:"required,oneof='Sandburg North' 'Sandburg South' 'Sandburg East' 'Sandburg West'"`
	Floor     int    `json:"floor" validate:"required,min=1"`
	IsActive  *bool  `json:"isActive"`
	ShowDorm  *bool  `json:"showDorm"`
	ShowFloor *bool  `json:"showFloor"`
}

// UserUpdate is a partial profile update. Absent fields stay untouched.
type UserUpdate struct {
	Username  *string `json:"username" validate:"omitempty,min=1,max=64"`
	Location  *string `json:"location" validate:"omitempty,oneof='Sandburg North' 'Sandburg South' 'Sandburg East' 'Sandburg West'"`
	Floor     *int    `json:"floor" validate:"omitempty,min=1"`
	IsActive  *bool   `json:"isActive"`
	ShowDorm  *bool   `json:"showDorm"`
	ShowFloor *bool   `json:"showFloor"`
}

// ApplianceCreate is a full appliance listing payload.
type ApplianceCreate struct {
	OwnerUID      string  `json:"ownerUid" validate:"required"`
	OwnerUsername string  `json:"ownerUsername" validate:"required"`
	Name          string  `json:"name" validate:"required,min=1,max=128"`
	Description   string  `json:"description" validate:"max=1000"`
	TimeAvailable float64 `json:"timeAvailable" validate:"required,gt=0"`
	LendTo        string  `json:"lendTo" validate:"required,oneof='Same Floor' 'Same Building' 'Anyone'"`
	IsVisible     *bool   `json:"isVisible"`
}

// ApplianceUpdate is a partial appliance update.
type ApplianceUpdate struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=128"`
	Description   *string  `json:"description" validate:"omitempty,max=1000"`
	TimeAvailable *float64 `json:"timeAvailable" validate:"omitempty,gt=0"`
	LendTo        *string  `json:"lendTo" validate:"omitempty,oneof='Same Floor' 'Same Building' 'Anyone'"`
	IsVisible     *bool    `json:"isVisible"`
}

// RequestCreate is a full borrow-request payload.
type RequestCreate struct {
	RequesterEmail  string `json:"requesterEmail" validate:"required,email"`
	ApplianceName   string `json:"applianceName" validate:"required,min=1,max=128"`
	Collateral      *bool  `json:"collateral"`
	RequestDuration int    `json:"requestDuration" validate:"required,gt=0"`
}

// RequestStatusUpdate carries a new request status.
type RequestStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=open fulfilled closed"`
}

// MessageSend is a full direct-message payload.
type MessageSend struct {
	SenderUID    string `json:"senderUid" validate:"required"`
	RecipientUID string `json:"recipientUid" validate:"required"`
	Text         string `json:"text" validate:"required,min=1,max=1000"`
}

// Struct runs the declarative rules and returns the first violation.
func Struct(payload any) *Error {
	if err := valid.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return &Error{Field: "payload", Reason: err.Error()}
	}
	return nil
}

func userFloorValidation(sl validator.StructLevel) {
	var location string
	var floor int
	switch payload := sl.Current().Interface().(type) {
	case UserCreate:
		location, floor = payload.Location, payload.Floor
	case UserUpdate:
		// Partial updates only evaluate the pair when both fields arrive;
		// the caller re-checks against the merged record.
		if payload.Location == nil || payload.Floor == nil {
			return
		}
		location, floor = *payload.Location, *payload.Floor
	default:
		return
	}
	ceiling, ok := domain.FloorCeilings[location]
	if !ok {
		return
	}
	if floor >= ceiling {
		sl.ReportError(floor, "floor", "Floor", "floorceiling", location)
	}
}

// CheckFloor re-validates a merged location/floor pair. Used after partial
// updates where only one of the two fields changed.
func CheckFloor(location string, floor int) *Error {
	ceiling, ok := domain.FloorCeilings[location]
	if !ok {
		return &Error{Field: "location", Reason: "unknown building wing"}
	}
	if floor < 1 {
		return &Error{Field: "floor", Reason: "must be at least 1"}
	}
	if floor >= ceiling {
		return &Error{Field: "floor", Reason: fmt.Sprintf("must be below %d for %s", ceiling, location)}
	}
	return nil
}

func fieldError(fe validator.FieldError) *Error {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return &Error{Field: field, Reason: "is required"}
	case "email":
		return &Error{Field: field, Reason: "must be a valid email address"}
	case "oneof":
		return &Error{Field: field, Reason: fmt.Sprintf("must be one of: %s", fe.Param())}
	case "min":
		return &Error{Field: field, Reason: fmt.Sprintf("must be at least %s", fe.Param())}
	case "max":
		return &Error{Field: field, Reason: fmt.Sprintf("must be at most %s", fe.Param())}
	case "gt":
		return &Error{Field: field, Reason: fmt.Sprintf("must be greater than %s", fe.Param())}
	case "floorceiling":
		ceiling := domain.FloorCeilings[fe.Param()]
		return &Error{Field: "floor", Reason: fmt.Sprintf("must be below %d for %s", ceiling, fe.Param())}
	default:
		return &Error{Field: field, Reason: "is invalid"}
	}
}

func jsonFieldName(structField string) string {
	if structField == "" {
		return structField
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}
