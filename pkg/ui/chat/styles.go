package chat

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for the conversation view regions.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	selfBox    lipgloss.Style
	selfTitle  lipgloss.Style
	botBox     lipgloss.Style
	botTitle   lipgloss.Style
	imageTag   lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
}

// defaultTheme defines the visual-novel terminal palette.
func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("54")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("183")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("97")),
		selfBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("75")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		selfTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("75")).
			Padding(0, 1),
		botBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("213")).
			Background(lipgloss.Color("234")).
			Padding(0, 1),
		botTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("213")).
			Padding(0, 1),
		imageTag: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("146")),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("146")),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("221")),
		statusErr: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203")),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("102")),
		inputLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1),
		viewport: lipgloss.NewStyle().
			Padding(0, 1),
	}
}
