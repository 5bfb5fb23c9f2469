package capability

import "strconv"

// Export identifies a command the host sends into the guest entry point.
type Export int32

const (
	Init Export = iota
	Shutdown
	ConsoleCommand
	DrawActiveFrame
	CrosshairPlayer
	LastAttacker
	KeyEvent
	MouseEvent
	EventHandling
)

var exportNames = [...]string{
	Init:            "CG_INIT",
	Shutdown:        "CG_SHUTDOWN",
	ConsoleCommand:  "CG_CONSOLE_COMMAND",
	DrawActiveFrame: "CG_DRAW_ACTIVE_FRAME",
	CrosshairPlayer: "CG_CROSSHAIR_PLAYER",
	LastAttacker:    "CG_LAST_ATTACKER",
	KeyEvent:        "CG_KEY_EVENT",
	MouseEvent:      "CG_MOUSE_EVENT",
	EventHandling:   "CG_EVENT_HANDLING",
}

func (e Export) String() string {
	if e >= 0 && int(e) < len(exportNames) {
		return exportNames[e]
	}
	return "export(" + strconv.Itoa(int(e)) + ")"
}

// MaxExportArgs is the number of argument words the guest entry point accepts
// after the command.
const MaxExportArgs = 12
