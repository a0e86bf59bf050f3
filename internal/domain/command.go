package domain

// Terminal log messages recorded with each command result.
const (
	MsgCompleted  = "Command completed"
	MsgTimedOut   = "Process timed out and was killed. Long-running or interactive programs are not supported."
	MsgStartError = "Command failed to start"
	MsgCanceled   = "Command was canceled before it finished"
)

// CommandResult is the record produced for every executed command. Field
// order matches the terminal log line.
type CommandResult struct {
	Command    string `json:"command"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	Msg        string `json:"msg"`
}

// TimedOut reports whether the watchdog terminated the command.
func (r CommandResult) TimedOut() bool { return r.Msg == MsgTimedOut }
