package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatusCmd() *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show host resource usage and the most recent replay snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, snapshotPath)
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "path to a snapshot file written by `syncordian replay --snapshot`")
	return cmd
}

func runStatus(cmd *cobra.Command, snapshotPath string) error {
	pct, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil {
		return fmt.Errorf("status: cpu: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("status: mem: %w", err)
	}

	var cpuPct float64
	if len(pct) > 0 {
		cpuPct = pct[0]
	}

	out := cmd.OutOrStdout()
	renderHostSection(out, cpuPct, vm.UsedPercent)

	if snapshotPath == "" {
		return nil
	}

	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("status: read snapshot %s: %w", snapshotPath, err)
	}
	var snap map[string]string
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("status: parse snapshot: %w", err)
	}
	renderSnapshotSection(out, snap)
	return nil
}

func renderHostSection(w io.Writer, cpuPct, memPct float64) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderHeader(false).BorderColumn(false)

	t.Row("HOST")
	t.Row("CPU", "MEM")
	t.Row(fmt.Sprintf("%.1f%%", cpuPct), fmt.Sprintf("%.1f%%", memPct))

	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")).PaddingRight(2)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingRight(2)
	dataStyle := lipgloss.NewStyle().PaddingRight(2)

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch row {
		case 0:
			return sectionStyle
		case 1:
			return headerStyle
		default:
			return dataStyle
		}
	})

	fmt.Fprintln(w, t)
	fmt.Fprintln(w)
}

func renderSnapshotSection(w io.Writer, snap map[string]string) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderHeader(false).BorderColumn(false)

	t.Row("SNAPSHOT")
	t.Row("AUTHOR", "LINES")

	authors := make([]string, 0, len(snap))
	for author := range snap {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	for _, author := range authors {
		content := snap[author]
		lines := 0
		if content != "" {
			lines = strings.Count(content, "\n") + 1
		}
		t.Row(author, fmt.Sprintf("%d", lines))
	}

	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")).PaddingRight(2)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingRight(2)
	dataStyle := lipgloss.NewStyle().PaddingRight(2)

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch row {
		case 0:
			return sectionStyle
		case 1:
			return headerStyle
		default:
			return dataStyle
		}
	})

	fmt.Fprintln(w, t)
}
