package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for interactive commands.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`            _               `, "#86efac"},
		{`  __ _ _ __| |__  ___  _ __ `, "#4ade80"},
		{` / _` + "`" + ` | '__| '_ \/ _ \| '__|`, "#22c55e"},
		{`| (_| | |  | |_) | (_) | |  `, "#16a34a"},
		{` \__,_|_|  |_.__/\___/|_|   `, "#15803d"},
	}

	fmt.Println()
	for _, line := range lines {
		fmt.Println(termenv.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Printf("  v%s\n\n", strings.TrimSpace(version))
}
