package types

// Mode represents the top-level navigation mode. Exactly one mode is active
// at a time; there is no history stack.
type Mode string

const (
	ModeLogin  Mode = "LOGIN"
	ModeChat   Mode = "CHAT"
	ModeVoice  Mode = "VOICE"
	ModeStudio Mode = "STUDIO"
	ModeMCQ    Mode = "MCQ"
)

// Valid reports whether m is a member of the closed mode enumeration.
func (m Mode) Valid() bool {
	switch m {
	case ModeLogin, ModeChat, ModeVoice, ModeStudio, ModeMCQ:
		return true
	}
	return false
}
