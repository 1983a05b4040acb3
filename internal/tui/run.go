package tui

import (
	"context"
	"errors"

	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits or ctx is done. It owns the
// controller for that time: ctrl.Run starts here and its context is
// cancelled when the program exits, so no refresh lands after that.
func Run(ctx context.Context, ctrl *dashboard.Controller, opts ...tea.ProgramOption) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan dashboard.State, 1)
	ctrl.Watch(func(st dashboard.State) {
		offer(updates, st)
	})

	opts = append([]tea.ProgramOption{tea.WithContext(runCtx)}, opts...)
	prog := tea.NewProgram(NewModel(ctrl), opts...)

	ctrlDone := make(chan error, 1)
	go func() {
		ctrlDone <- ctrl.Run(runCtx)
	}()

	go func() {
		for {
			select {
			case st := <-updates:
				prog.Send(StateMsg{State: st})
			case <-runCtx.Done():
				return
			}
		}
	}()

	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}

	cancel()
	if ctrlErr := <-ctrlDone; err == nil {
		err = ctrlErr
	}
	return err
}

// offer puts st on ch without blocking. A pending state is replaced unless
// it is newer.
func offer(ch chan dashboard.State, st dashboard.State) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case pending := <-ch:
			if pending.Version > st.Version {
				st = pending
			}
		default:
		}
	}
}
