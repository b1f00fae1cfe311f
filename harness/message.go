package harness

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MessageClass is class of Message source.
// It can be the whole run, one spec version or a single test case.
type MessageClass string

const (
	RunMsg     MessageClass = "run"
	VersionMsg MessageClass = "version"
	CaseMsg    MessageClass = "case"
)

// MessageStatus represent status of the Message source.
type MessageStatus string

const (
	StatusStart  MessageStatus = "Start"
	StatusFinish MessageStatus = "Finish"
	StatusSkip   MessageStatus = "Skip"
	StatusWarn   MessageStatus = "Warn"
	StatusError  MessageStatus = "Error"
	StatusCancel MessageStatus = "Cancel"
)

// Message is a struct to transfer status change in a conformance run
type Message struct {
	Class     MessageClass  // Class of source
	Status    MessageStatus // Status of source, usually message will be sent if status is changed
	TimeStamp time.Time     // TimeStamp when this message been sent
	Version   string        // Spec version of source
	Name      string        // Test case name of source, empty for run/version messages
	Outcome   Outcome       // Outcome carried by a case StatusFinish msg
	Info      string        // Info is normal message
	Error     error         // Error is error message, normally used in StatusError msg
}

// ToString convert a Message to plain string
func (m Message) ToString() string {
	if m.Status == StatusError && m.Error != nil {
		return m.Error.Error()
	}
	return m.Info
}

// ToLog convert a Message to log string
func (m Message) ToLog() string {
	var src string
	switch m.Class {
	case CaseMsg:
		src = fmt.Sprintf("[%s \"%s\"]", m.Version, m.Name)
	case VersionMsg:
		src = fmt.Sprintf("[%s]", m.Version)
	default:
		src = "[run]"
	}
	if m.Outcome != "" {
		return fmt.Sprintf("[%s]%s[%s] %s %s", m.TimeStamp.Format(time.DateTime), src, m.Status, m.Outcome, m.ToString())
	}
	return fmt.Sprintf("[%s]%s[%s] %s", m.TimeStamp.Format(time.DateTime), src, m.Status, m.ToString())
}

type MessageReceiver interface {
	SendMsg(message Message)
}

// DefaultMsgReceiver will print all Message it receive to log
type DefaultMsgReceiver struct {
}

// SendMsg impl the MessageReceiver interface
func (DefaultMsgReceiver) SendMsg(message Message) {
	fmt.Println(message.ToLog())
}

// ZapMsgReceiver forwards messages to a zap logger.
type ZapMsgReceiver struct {
	Log *zap.Logger
}

// SendMsg impl the MessageReceiver interface
func (r ZapMsgReceiver) SendMsg(message Message) {
	if r.Log == nil {
		return
	}
	fields := []zap.Field{
		zap.String("class", string(message.Class)),
	}
	if message.Version != "" {
		fields = append(fields, zap.String("version", message.Version))
	}
	if message.Name != "" {
		fields = append(fields, zap.String("case", message.Name))
	}
	if message.Outcome != "" {
		fields = append(fields, zap.String("outcome", string(message.Outcome)))
	}
	if message.Error != nil {
		fields = append(fields, zap.Error(message.Error))
	}
	switch message.Status {
	case StatusError:
		r.Log.Error(message.ToString(), fields...)
	case StatusWarn:
		r.Log.Warn(message.ToString(), fields...)
	default:
		r.Log.Info(fmt.Sprintf("%s %s", message.Status, message.ToString()), fields...)
	}
}
