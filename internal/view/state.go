package view

import (
	"context"

	"github.com/looplab/fsm"
)

type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateReady   State = "ready"
	StateError   State = "error"
)

const (
	eventSubmit  = "submit"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventDismiss = "dismiss"
	eventReset   = "reset"
)

// newMachine builds the request lifecycle. Only one request can be pending: submit is
// not a legal event from pending.
func newMachine(onEnter func(ctx context.Context, e *fsm.Event)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventSubmit, Src: []string{string(StateIdle), string(StateReady), string(StateError)}, Dst: string(StatePending)},
			{Name: eventSucceed, Src: []string{string(StatePending)}, Dst: string(StateReady)},
			{Name: eventFail, Src: []string{string(StatePending)}, Dst: string(StateError)},
			{Name: eventDismiss, Src: []string{string(StateError)}, Dst: string(StateReady)},
			{Name: eventReset, Src: []string{string(StateError), string(StateReady)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": onEnter,
		},
	)
}
