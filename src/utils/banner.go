package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// BannerInfo is what the startup banner shows
type BannerInfo struct {
	Version  string
	Mode     string
	Address  string
	Database string
	Cache    string
	Tracing  string
}

// getTerminalWidth returns terminal width, defaulting to 80
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width == 0 {
		return 80
	}
	return width
}

// useColor honours NO_COLOR and dumb terminals
func useColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// DisplayBanner prints the startup banner to stdout
func DisplayBanner(info BannerInfo) {
	RenderBanner(os.Stdout, info, getTerminalWidth(), useColor())
}

// RenderBanner writes the banner for a terminal of the given width.
// Narrow terminals get a single line.
func RenderBanner(w io.Writer, info BannerInfo, width int, color bool) {
	if width < 60 {
		fmt.Fprintf(w, "EcoGarden %s listening on %s\n", info.Version, info.Address)
		return
	}

	title := lipgloss.NewStyle().Bold(true)
	label := lipgloss.NewStyle().Width(10)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2)
	if color {
		title = title.Foreground(lipgloss.Color("34"))
		label = label.Foreground(lipgloss.Color("244"))
		box = box.BorderForeground(lipgloss.Color("34"))
	}

	rows := []struct{ k, v string }{
		{"Version", info.Version},
		{"Mode", info.Mode},
		{"Listen", info.Address},
		{"Database", info.Database},
		{"Cache", info.Cache},
		{"Tracing", info.Tracing},
	}

	var b strings.Builder
	b.WriteString(title.Render("🌱 EcoGarden API"))
	for _, row := range rows {
		if row.v == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(label.Render(row.k))
		b.WriteString(row.v)
	}

	fmt.Fprintln(w, box.Render(b.String()))
}
