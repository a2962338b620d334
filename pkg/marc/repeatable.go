package marc

// nonRepeatableTags lists the MARC-21 fields of which a record may hold at
// most one. Anything not listed is treated as repeatable.
var nonRepeatableTags = map[string]bool{
	"001": true, "003": true, "005": true, "008": true,
	"010": true, "018": true, "036": true, "038": true,
	"040": true, "042": true, "044": true, "045": true,
	"100": true, "110": true, "111": true, "130": true,
	"240": true, "243": true, "245": true, "254": true,
	"256": true, "263": true, "306": true, "310": true,
	"357": true, "384": true, "507": true, "514": true,
}

// IsRepeatableField reports whether fields with the given tag may occur more
// than once in a record.
func IsRepeatableField(tag string) bool {
	return !nonRepeatableTags[tag]
}
