package chat

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vnchat/pkg/bus"
	"vnchat/pkg/syncengine"
)

// Run drives the interactive conversation view until the user quits. The
// events channel carries engine notifications; the model re-reads engine
// snapshots and never mutates conversation state itself.
func Run(ctx context.Context, engine *syncengine.Engine, events <-chan bus.Event, scene SceneInfo) error {
	model := newModel(ctx, engine, events, scene)
	program := tea.NewProgram(model, tea.WithContext(ctx))
	_, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(renderGoodbyeBanner())
	return nil
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color("54")).
		Padding(1, 2)

	return style.Render("🎭 See you next time")
}
