package app

// Key binding constants used in handleKey.
const (
	KeyQuit         = "ctrl+c"
	KeyNextFocus    = "tab"
	KeyPrevFocus    = "shift+tab"
	KeySave         = "ctrl+s"
	KeyRecord       = "ctrl+r"
	KeyCycleView    = "ctrl+e"
	KeyCycleSpeaker = "ctrl+n"
	KeySpace        = " "
	KeyBackspace    = "backspace"
	KeyLeft         = "left"
	KeyRight        = "right"
	KeyShiftLeft    = "shift+left"
	KeyShiftRight   = "shift+right"
	KeyUp           = "up"
	KeyDown         = "down"
)
