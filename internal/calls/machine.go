package calls

import (
	"context"

	"github.com/looplab/fsm"
)

const (
	evInvite  = "invite"
	evDial    = "dial"
	evAnswer  = "answer"
	evConnect = "connect"
	evEnd     = "end"
	evClear   = "clear"
)

func newMachine(onEnter func(from, to Phase)) *fsm.FSM {
	return fsm.NewFSM(
		string(PhaseIdle),
		fsm.Events{
			{Name: evInvite, Src: []string{string(PhaseIdle)}, Dst: string(PhaseRinging)},
			{Name: evDial, Src: []string{string(PhaseIdle)}, Dst: string(PhaseConnecting)},
			{Name: evAnswer, Src: []string{string(PhaseRinging)}, Dst: string(PhaseConnecting)},
			{Name: evConnect, Src: []string{string(PhaseConnecting)}, Dst: string(PhaseActive)},
			{Name: evEnd, Src: []string{string(PhaseRinging), string(PhaseConnecting), string(PhaseActive)}, Dst: string(PhaseEnded)},
			{Name: evClear, Src: []string{string(PhaseEnded)}, Dst: string(PhaseIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(Phase(e.Src), Phase(e.Dst))
			},
		},
	)
}
