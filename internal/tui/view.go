package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dialogeval/evaluator/internal/annotation"
)

const (
	listWidth       = 32
	evaluationWidth = 44
	chromeHeight    = 6
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	reviewedBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787")).Render("Reviewed")
	pendingBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")).Render("Pending")
	likeBadge     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787")).Render("[+]")
	dislikeBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("[-]")
	flagStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))

	userRole = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	botRole  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

func paneStyle(focused bool) lipgloss.Style {
	border := lipgloss.Color("#444444")
	if focused {
		border = lipgloss.Color("#5B8DEF")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

func (a *App) View() string {
	reviewed, total := a.session.Queue().Progress()
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Dialog Evaluator"),
		mutedStyle.Render(fmt.Sprintf("  %d/%d reviewed", reviewed, total)),
	)

	paneHeight := max(a.height-chromeHeight, 8)
	list := paneStyle(a.focus == paneList).
		Width(listWidth).
		Height(paneHeight).
		Render(a.renderList(paneHeight))
	transcript := paneStyle(a.focus == paneTranscript).
		Width(a.transcriptWidth()).
		Height(paneHeight).
		Render(a.renderTranscriptPane())
	evaluation := paneStyle(a.focus == paneEvaluation).
		Width(evaluationWidth).
		Height(paneHeight).
		Render(a.renderEvaluation())

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, transcript, evaluation)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, a.renderFooter())
}

func (a *App) renderList(height int) string {
	items := a.visibleDialogs()
	if len(items) == 0 {
		if a.filter != "" {
			return mutedStyle.Render("No dialog matches " + a.filter)
		}
		return mutedStyle.Render("No dialogs")
	}

	selected := a.session.Queue().Selected()
	start := 0
	if a.listCursor >= height {
		start = a.listCursor - height + 1
	}
	var lines []string
	for i := start; i < len(items) && len(lines) < height; i++ {
		d := items[i]
		badge := pendingBadge
		if d.Status == annotation.StatusReviewed {
			badge = reviewedBadge
		}
		marker := "  "
		if d.ID == selected {
			marker = "* "
		}
		name := truncate(d.ID, listWidth-12)
		line := marker + name + " " + badge
		if i == a.listCursor && a.focus == paneList {
			line = cursorStyle.Render("> " + name + " ") + badge
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderTranscriptPane() string {
	dialog := a.session.Dialog()
	if dialog == nil {
		if a.loading {
			return mutedStyle.Render("Loading...")
		}
		return mutedStyle.Render("Select a dialog")
	}
	head := titleStyle.Render(dialog.ID) + mutedStyle.Render(" "+dialog.Topic+" / "+dialog.Emotion)
	return lipgloss.JoinVertical(lipgloss.Left, head, a.transcript.View())
}

// refreshTranscript re-renders the messages into the viewport and keeps the
// focused message visible.
func (a *App) refreshTranscript() {
	dialog := a.session.Dialog()
	if dialog == nil {
		a.transcript.SetContent("")
		return
	}
	width := max(a.transcript.Width, 20)
	feedback := a.session.Feedback()

	var b strings.Builder
	cursorLine := 0
	line := 0
	for _, m := range dialog.Messages {
		if m.Index == a.msgCursor {
			cursorLine = line
		}
		block := renderMessage(m, feedback.Feedback(m.Index), m.Index == a.msgCursor, width)
		b.WriteString(block)
		b.WriteString("\n\n")
		line += strings.Count(block, "\n") + 2
	}
	a.transcript.SetContent(b.String())

	if cursorLine < a.transcript.YOffset || cursorLine >= a.transcript.YOffset+a.transcript.Height {
		a.transcript.SetYOffset(cursorLine)
	}
}

func renderMessage(m annotation.Message, fb annotation.Feedback, focused bool, width int) string {
	role := userRole.Render("User")
	if m.Role == annotation.RoleBot {
		role = botRole.Render("Bot")
	}
	head := fmt.Sprintf("#%d %s", m.Index, role)
	if m.Timestamp != "" {
		head += mutedStyle.Render(" " + m.Timestamp)
	}
	switch fb.Rating {
	case annotation.RatingLike:
		head += " " + likeBadge
	case annotation.RatingDislike:
		head += " " + dislikeBadge
	}
	if len(fb.Tags) > 0 {
		head += " " + mutedStyle.Render(strings.Join(fb.Tags, ", "))
	}
	if focused {
		head = cursorStyle.Render(">") + " " + head
	} else {
		head = "  " + head
	}
	content := lipgloss.NewStyle().Width(width - 2).PaddingLeft(2).Render(m.Content)
	return head + "\n" + content
}

func (a *App) renderEvaluation() string {
	ev := a.session.Evaluation()
	if a.current() == "" {
		return mutedStyle.Render("No dialog selected")
	}
	if ev.Loading() {
		return mutedStyle.Render("Loading evaluation...")
	}
	form := ev.Current()

	state := "new"
	if ev.Persisted() {
		state = "saved"
	}
	lines := []string{titleStyle.Render("Evaluation") + mutedStyle.Render(" ("+state+")")}

	row := func(i int, label, value string) {
		text := fmt.Sprintf("%-22s %s", label, value)
		if a.focus == paneEvaluation && a.evalRow == i {
			lines = append(lines, cursorStyle.Render("> "+text))
			return
		}
		lines = append(lines, "  "+text)
	}

	quality := string(form.OverallQuality)
	if quality == "" {
		quality = "-"
	}
	row(rowQuality, "Kualitas", quality)
	for i, m := range annotation.Metrics {
		row(firstMetric+i, m.Label(), scoreBar(form.Score(m)))
	}
	lines = append(lines, mutedStyle.Render("Isu"))
	for i, issue := range annotation.Issues {
		box := "[ ]"
		if slices.Contains(form.Issues, issue) {
			box = "[x]"
		}
		label := truncate(issue, evaluationWidth-10)
		if annotation.IsFlagIssue(issue) {
			label = flagStyle.Render(label)
		}
		row(firstIssue+i, box+" "+label, "")
	}
	notes := form.Notes
	if notes == "" {
		notes = "-"
	}
	row(rowNotes, "Notes", truncate(notes, evaluationWidth-28))

	if missing := form.MissingFields(); len(missing) > 0 {
		lines = append(lines, "", mutedStyle.Render(fmt.Sprintf("%d field(s) left before submit", len(missing))))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderFooter() string {
	if a.mode != inputNone {
		return a.input.View()
	}
	status := a.status
	if a.statusErr {
		status = errorStyle.Render(status)
	}
	help := mutedStyle.Render("tab pane  l/d react  1-3 tags  s submit  n skip  e/E export  / search  q quit")
	return lipgloss.JoinVertical(lipgloss.Left, status, help)
}

func (a *App) resize() {
	a.transcript.Width = a.transcriptWidth() - 2
	a.transcript.Height = max(a.height-chromeHeight-1, 4)
	a.input.Width = max(a.width-12, 10)
	a.refreshTranscript()
}

func (a *App) transcriptWidth() int {
	return max(a.width-listWidth-evaluationWidth-12, 24)
}

func scoreBar(score int) string {
	if score < annotation.MinScore || score > annotation.MaxScore {
		return "-"
	}
	return strings.Repeat("*", score) + strings.Repeat(".", annotation.MaxScore-score) + fmt.Sprintf(" %d", score)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
