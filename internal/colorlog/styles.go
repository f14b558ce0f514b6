// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package colorlog

import "github.com/charmbracelet/lipgloss"

var (
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Fail    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9300")) // orange
	Muted   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	Gray    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	Cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	Default = lipgloss.NewStyle()
)

var WarningBadge = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#000000")).
	Background(lipgloss.Color("#ff9300")).
	Padding(0, 1)

var ErrorBadge = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#000000")).
	Background(lipgloss.Color("196")).
	Padding(0, 1)
