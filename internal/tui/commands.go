package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/pkg/logger"
)

type startedMsg struct {
	report *annotation.LoadReport
	err    error
}

// openedMsg carries the load report of one selection. Reports for a
// selection that is no longer current are ignored. A nil report means a skip
// found nowhere to move.
type openedMsg struct {
	report *annotation.LoadReport
}

type submittedMsg struct {
	result *annotation.SubmitResult
	err    error
}

type exportedMsg struct {
	dialogID string
	path     string
	err      error
}

func startCmd(ctx context.Context, session *annotation.Session) tea.Cmd {
	return func() tea.Msg {
		report, err := session.Start(ctx)
		return startedMsg{report: report, err: err}
	}
}

func openCmd(ctx context.Context, session *annotation.Session, dialogID string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{report: session.Open(ctx, dialogID)}
	}
}

func skipCmd(ctx context.Context, session *annotation.Session) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{report: session.Skip(ctx)}
	}
}

func submitCmd(ctx context.Context, session *annotation.Session) tea.Cmd {
	return func() tea.Msg {
		result, err := session.Submit(ctx)
		return submittedMsg{result: result, err: err}
	}
}

func exportCmd(ctx context.Context, session *annotation.Session, dir, format string) tea.Cmd {
	return func() tea.Msg {
		dialogID := session.Selection().DialogID
		data, err := session.Export(ctx, format)
		if err != nil {
			return exportedMsg{dialogID: dialogID, err: err}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportedMsg{dialogID: dialogID, err: fmt.Errorf("create export dir: %w", err)}
		}
		path := filepath.Join(dir, annotation.ExportFilename(dialogID, format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return exportedMsg{dialogID: dialogID, err: fmt.Errorf("write export: %w", err)}
		}
		logger.Info().Str("dialog_id", dialogID).Str("path", path).Msg("dialog exported")
		return exportedMsg{dialogID: dialogID, path: path}
	}
}
