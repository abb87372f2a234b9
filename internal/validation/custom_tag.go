package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Room identifiers come from the room catalogue and look like "/live" or
// "plaza/2f"; an optional leading slash followed by path-ish segments.
var roomIDRegex = regexp.MustCompile(`^/?[A-Za-z0-9_-]{1,32}(?:/[A-Za-z0-9_-]{1,32}){0,3}$`)

func init() {
	MustRegisterGin("roomid", ValidateRoomID)
	MustRegisterGinAlias("accountid", "uuid4")
}

// ValidateRoomID validates room identifier format
func ValidateRoomID(fl validator.FieldLevel) bool {
	return roomIDRegex.MatchString(fl.Field().String())
}
