package application

import (
	"context"

	"github.com/looplab/fsm"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

func (s ConnectionState) String() string {
	return string(s)
}

const (
	eventConnect    = "connect"
	eventSucceed    = "succeed"
	eventFail       = "fail"
	eventLose       = "lose"
	eventDisconnect = "disconnect"
)

// newStateMachine starts in StateDisconnected. onEnter must not call back into the machine.
func newStateMachine(onEnter func(from, to ConnectionState)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventConnect, Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: eventSucceed, Src: []string{string(StateConnecting), string(StateReconnecting)}, Dst: string(StateConnected)},
			{Name: eventFail, Src: []string{string(StateConnecting), string(StateReconnecting)}, Dst: string(StateDisconnected)},
			{Name: eventLose, Src: []string{string(StateConnected)}, Dst: string(StateReconnecting)},
			{Name: eventDisconnect, Src: []string{string(StateConnected)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(ConnectionState(e.Src), ConnectionState(e.Dst))
			},
		},
	)
}
