package main

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/oakmoss/puctsearch/pkg/mcts"
)

// printAnalysis renders one line per root child: the first (most-visited)
// line in bold bright green, every other line in the terminal's default
// style — a terminal-only analysis view, the CLI counterpart to the
// websocket stream serve_cmd.go exposes over the network.
func printAnalysis(lines []mcts.AnalysisLine) {
	profile := termenv.ColorProfile()
	for i, line := range lines {
		row := fmt.Sprintf("%-4d visits=%-8d winrate=%.3f prior=%.3f", line.Move, line.Visits, line.WinRate, line.Prior)
		if i == 0 {
			row = termenv.String(row).Foreground(profile.Color("10")).Bold().String()
		}
		fmt.Fprintln(os.Stdout, row)
	}
}
