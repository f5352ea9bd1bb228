package roles

// Mode selects which attribute roles a guild maintains. It is a closed
// type; unknown stored values parse to ModeNone.
type Mode int

const (
	// ModeNone maintains no attribute roles.
	ModeNone Mode = iota
	// ModeLevels maintains one role per academic level.
	ModeLevels
	// ModeClasses maintains one role per class year.
	ModeClasses
	// ModeCustom maintains an operator-chosen subset of the catalog.
	ModeCustom
)

// String returns the store encoding of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLevels:
		return "levels"
	case ModeClasses:
		return "classes"
	case ModeCustom:
		return "custom"
	default:
		return "none"
	}
}

// ParseMode decodes a stored mode string. Unknown values, including the
// empty string for an unconfigured guild, map to ModeNone.
func ParseMode(s string) Mode {
	switch s {
	case "levels":
		return ModeLevels
	case "classes":
		return ModeClasses
	case "custom":
		return ModeCustom
	default:
		return ModeNone
	}
}
