// Package tui is the reviewer terminal client. It drives an
// annotation.Session: every store call runs inside a tea.Cmd and comes back
// as a message tagged with the selection it was made for.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/pkg/logger"
)

// pane is the part of the screen that receives navigation keys.
type pane int

const (
	paneList pane = iota
	paneTranscript
	paneEvaluation
)

// inputMode says what the text input is collecting, if anything.
type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputCustomTag
	inputNotes
)

// Rows of the evaluation pane: quality, the metrics, the issues, notes.
const (
	rowQuality  = 0
	firstMetric = 1
)

var (
	firstIssue = firstMetric + len(annotation.Metrics)
	rowNotes   = firstIssue + len(annotation.Issues)
)

// App is the bubbletea model of the reviewer client.
type App struct {
	ctx       context.Context
	session   *annotation.Session
	exportDir string

	width, height int
	focus         pane

	filter     string
	listCursor int
	msgCursor  int
	evalRow    int

	mode       inputMode
	input      textinput.Model
	transcript viewport.Model

	loading    bool
	submitting bool
	status     string
	statusErr  bool
}

// New builds the client over session. Exports are written to exportDir.
func New(ctx context.Context, session *annotation.Session, exportDir string) *App {
	input := textinput.New()
	input.CharLimit = 200

	return &App{
		ctx:        ctx,
		session:    session,
		exportDir:  exportDir,
		input:      input,
		transcript: viewport.New(0, 0),
		loading:    true,
		status:     "Loading dialogs...",
	}
}

func (a *App) Init() tea.Cmd {
	return startCmd(a.ctx, a.session)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case startedMsg:
		a.loading = false
		if msg.err != nil {
			a.setError("Could not load dialogs: " + msg.err.Error())
			return a, nil
		}
		a.syncListCursor()
		if msg.report == nil {
			a.setStatus("No dialogs yet. Upload a transcript to begin.")
			return a, nil
		}
		a.applyLoad(msg.report)
		return a, nil

	case openedMsg:
		if msg.report == nil {
			a.loading = false
			a.setStatus("No other dialog to move to")
			return a, nil
		}
		if msg.report.Stale || !a.session.IsCurrent(msg.report.Selection) {
			logger.Debug().Str("dialog_id", msg.report.Selection.DialogID).Msg("dropped stale dialog load")
			return a, nil
		}
		a.loading = false
		a.applyLoad(msg.report)
		return a, nil

	case submittedMsg:
		a.submitting = false
		a.loading = false
		a.applySubmit(msg)
		return a, nil

	case exportedMsg:
		if msg.err != nil {
			a.setError("Export failed: " + msg.err.Error())
		} else {
			a.setStatus("Exported " + msg.dialogID + " to " + msg.path)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		if a.mode != inputNone {
			return a.updateInput(msg)
		}
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.transcript, cmd = a.transcript.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return a, tea.Quit
	case "tab":
		a.focus = (a.focus + 1) % 3
		return a, nil
	case "shift+tab":
		a.focus = (a.focus + 2) % 3
		return a, nil
	case "/":
		a.openInput(inputSearch, "Search: ", a.filter)
		return a, nil
	case "s":
		return a, a.submit()
	case "n":
		if a.current() == "" {
			return a, nil
		}
		a.loading = true
		a.setStatus("Skipping...")
		return a, skipCmd(a.ctx, a.session)
	case "e":
		return a, a.export(annotation.FormatJSON)
	case "E":
		return a, a.export(annotation.FormatCSV)
	case "r":
		a.loading = true
		a.setStatus("Reloading...")
		return a, startCmd(a.ctx, a.session)
	}

	switch a.focus {
	case paneList:
		return a.handleListKey(key)
	case paneTranscript:
		return a.handleTranscriptKey(key)
	default:
		return a.handleEvaluationKey(key)
	}
}

func (a *App) handleListKey(key string) (tea.Model, tea.Cmd) {
	items := a.visibleDialogs()
	switch key {
	case "up", "k":
		if a.listCursor > 0 {
			a.listCursor--
		}
	case "down", "j":
		if a.listCursor < len(items)-1 {
			a.listCursor++
		}
	case "enter":
		if a.listCursor >= len(items) {
			return a, nil
		}
		id := items[a.listCursor].ID
		a.loading = true
		a.msgCursor = 0
		a.focus = paneTranscript
		a.setStatus("Opening " + id + "...")
		return a, openCmd(a.ctx, a.session, id)
	}
	return a, nil
}

func (a *App) handleTranscriptKey(key string) (tea.Model, tea.Cmd) {
	dialog := a.session.Dialog()
	if dialog == nil || a.loading {
		return a, nil
	}
	feedback := a.session.Feedback()
	switch key {
	case "up", "k":
		if a.msgCursor > 0 {
			a.msgCursor--
		}
	case "down", "j":
		if a.msgCursor < len(dialog.Messages)-1 {
			a.msgCursor++
		}
	case "l":
		feedback.SetReaction(a.msgCursor, annotation.RatingLike)
	case "d":
		feedback.SetReaction(a.msgCursor, annotation.RatingDislike)
	case "1", "2", "3":
		tag := annotation.PresetTags[int(key[0]-'1')]
		if tag == annotation.TagOther && !feedback.Feedback(a.msgCursor).HasTag(tag) {
			a.openInput(inputCustomTag, "Tag: ", "")
			return a, nil
		}
		feedback.ToggleTag(a.msgCursor, tag)
	}
	a.refreshTranscript()
	return a, nil
}

func (a *App) handleEvaluationKey(key string) (tea.Model, tea.Cmd) {
	if a.current() == "" || a.session.Evaluation().Loading() {
		return a, nil
	}
	ev := a.session.Evaluation()
	switch key {
	case "up", "k":
		if a.evalRow > 0 {
			a.evalRow--
		}
	case "down", "j":
		if a.evalRow < rowNotes {
			a.evalRow++
		}
	case "1", "2", "3", "4", "5":
		if m, ok := a.focusedMetric(); ok {
			ev.SetMetric(m, int(key[0]-'0'))
		}
	case "left", "right", " ", "enter":
		switch {
		case a.evalRow == rowQuality:
			step := 1
			if key == "left" {
				step = -1
			}
			ev.SetOverallQuality(cycleQuality(ev.Current().OverallQuality, step))
		case a.evalRow >= firstIssue && a.evalRow < rowNotes:
			ev.ToggleIssue(annotation.Issues[a.evalRow-firstIssue])
		case a.evalRow == rowNotes:
			a.openInput(inputNotes, "Notes: ", ev.Current().Notes)
		}
	}
	return a, nil
}

func (a *App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if a.mode == inputSearch {
			a.filter = ""
			a.syncListCursor()
		}
		a.closeInput()
		return a, nil
	case tea.KeyEnter:
		value := a.input.Value()
		switch a.mode {
		case inputSearch:
			a.filter = strings.TrimSpace(value)
			a.listCursor = 0
			a.focus = paneList
		case inputCustomTag:
			feedback := a.session.Feedback()
			if strings.TrimSpace(value) != "" {
				feedback.ToggleTag(a.msgCursor, annotation.TagOther)
				feedback.AddCustomTag(a.msgCursor, value)
			}
			a.refreshTranscript()
		case inputNotes:
			a.session.Evaluation().SetNotes(strings.TrimSpace(value))
		}
		a.closeInput()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	if a.mode == inputSearch {
		a.filter = strings.TrimSpace(a.input.Value())
		a.listCursor = 0
	}
	return a, cmd
}

func (a *App) submit() tea.Cmd {
	if a.current() == "" || a.submitting {
		return nil
	}
	if missing := a.session.Evaluation().Current().MissingFields(); len(missing) > 0 {
		a.setError("Cannot submit: " + strings.Join(missing, "; "))
		return nil
	}
	a.submitting = true
	a.setStatus("Submitting...")
	return submitCmd(a.ctx, a.session)
}

func (a *App) export(format string) tea.Cmd {
	id := a.current()
	if id == "" {
		return nil
	}
	a.setStatus("Exporting " + id + "...")
	return exportCmd(a.ctx, a.session, a.exportDir, format)
}

func (a *App) applyLoad(report *annotation.LoadReport) {
	a.syncListCursor()
	a.msgCursor = 0
	a.transcript.GotoTop()
	a.refreshTranscript()
	if err := report.Err(); err != nil {
		a.setError(err.Error())
		return
	}
	a.setStatus("Opened " + report.Selection.DialogID)
}

func (a *App) applySubmit(msg submittedMsg) {
	if msg.err != nil {
		a.setError("Submit failed: " + msg.err.Error())
		return
	}
	result := msg.result
	status := result.Message()
	if result.Advanced && result.NextDialogID != result.DialogID {
		status += ", moved to " + result.NextDialogID
		a.msgCursor = 0
		a.transcript.GotoTop()
	} else if !result.Advanced {
		status += ", every dialog is reviewed"
	}
	a.syncListCursor()
	a.refreshTranscript()
	if len(result.Warnings) > 0 {
		a.setError(status + " (" + result.Warnings[0].Error() + ")")
		return
	}
	a.setStatus(status)
}

func (a *App) current() string {
	return a.session.Selection().DialogID
}

func (a *App) visibleDialogs() []annotation.DialogSummary {
	return a.session.Queue().Filter(a.filter)
}

// syncListCursor points the list cursor at the selected dialog when it is
// visible under the current filter.
func (a *App) syncListCursor() {
	selected := a.session.Queue().Selected()
	items := a.visibleDialogs()
	for i, d := range items {
		if d.ID == selected {
			a.listCursor = i
			return
		}
	}
	if a.listCursor >= len(items) {
		a.listCursor = max(len(items)-1, 0)
	}
}

func (a *App) focusedMetric() (annotation.Metric, bool) {
	i := a.evalRow - firstMetric
	if i < 0 || i >= len(annotation.Metrics) {
		return "", false
	}
	return annotation.Metrics[i], true
}

func (a *App) openInput(mode inputMode, prompt, value string) {
	a.mode = mode
	a.input.Prompt = prompt
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.input.Focus()
}

func (a *App) closeInput() {
	a.mode = inputNone
	a.input.Blur()
	a.input.SetValue("")
}

func (a *App) setStatus(s string) {
	a.status = s
	a.statusErr = false
}

func (a *App) setError(s string) {
	a.status = s
	a.statusErr = true
}

// cycleQuality steps through the quality scale, starting from either end
// when nothing is selected.
func cycleQuality(q annotation.Quality, step int) annotation.Quality {
	n := len(annotation.Qualities)
	for i, candidate := range annotation.Qualities {
		if candidate == q {
			return annotation.Qualities[(i+step+n)%n]
		}
	}
	if step < 0 {
		return annotation.Qualities[n-1]
	}
	return annotation.Qualities[0]
}
