// Package tui provides terminal user interface components for rtctl.
//
// This package uses the Bubble Tea framework for the runtime picker shown
// when a command needs one runtime and none was selected.
//
// # Runtime Picker
//
// The picker lists runtimes grouped by project directory:
//
//	result, err := tui.RunPicker(entries)
//	switch result.Action {
//	case tui.ActionSelect:
//	    // Use result.Runtime
//	case tui.ActionReload, tui.ActionStop:
//	    // Act on result.Runtime
//	case tui.ActionQuit:
//	    // Exit
//	}
//
// # Picker Features
//
//   - Runtimes grouped by project directory, headers auto-skipped
//   - Keyboard navigation (j/k or arrows) and filtering
//   - Quick actions: Enter (select), r (reload), s (stop), q (quit)
//   - Color-coded health indicators
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
