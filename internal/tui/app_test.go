package tui

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dialogeval/evaluator/internal/annotation"
)

type fakeStore struct {
	mu          sync.Mutex
	dialogs     []annotation.Dialog
	evaluations map[string]annotation.Evaluation
	feedback    map[string]map[int]annotation.Feedback
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{
		evaluations: make(map[string]annotation.Evaluation),
		feedback:    make(map[string]map[int]annotation.Feedback),
	}
	for _, id := range ids {
		s.dialogs = append(s.dialogs, annotation.Dialog{
			ID:      id,
			Topic:   "Keluarga",
			Emotion: "marah",
			Messages: []annotation.Message{
				{Index: 0, Role: annotation.RoleUser, Content: "Aku kesal dengan adikku", Timestamp: "10:00"},
				{Index: 1, Role: annotation.RoleBot, Content: "Apa yang terjadi?"},
			},
		})
	}
	return s
}

func (s *fakeStore) ListDialogs(ctx context.Context) ([]annotation.DialogSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]annotation.DialogSummary, 0, len(s.dialogs))
	for _, d := range s.dialogs {
		out = append(out, annotation.DialogSummary{ID: d.ID, Topic: d.Topic, Emotion: d.Emotion, MessageCount: len(d.Messages)})
	}
	return out, nil
}

func (s *fakeStore) GetDialog(ctx context.Context, dialogID string) (*annotation.Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dialogs {
		if d.ID == dialogID {
			return &d, nil
		}
	}
	return nil, &annotation.NotFoundError{Resource: "dialog", ID: dialogID}
}

func (s *fakeStore) GetEvaluation(ctx context.Context, dialogID string) (*annotation.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.evaluations[dialogID]
	if !ok {
		return nil, &annotation.NotFoundError{Resource: "evaluation", ID: dialogID}
	}
	out := ev.Clone()
	return &out, nil
}

func (s *fakeStore) UpsertEvaluation(ctx context.Context, ev annotation.Evaluation) (annotation.UpsertAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := annotation.ActionCreated
	if _, ok := s.evaluations[ev.DialogID]; ok {
		action = annotation.ActionUpdated
	}
	s.evaluations[ev.DialogID] = ev.Clone()
	return action, nil
}

func (s *fakeStore) ListFeedback(ctx context.Context, dialogID string) ([]annotation.IndexedFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []annotation.IndexedFeedback
	for idx, fb := range s.feedback[dialogID] {
		out = append(out, annotation.IndexedFeedback{Index: idx, Feedback: fb})
	}
	return out, nil
}

func (s *fakeStore) UpsertFeedback(ctx context.Context, dialogID string, fb annotation.IndexedFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedback[dialogID] == nil {
		s.feedback[dialogID] = make(map[int]annotation.Feedback)
	}
	s.feedback[dialogID][fb.Index] = fb.Feedback
	return nil
}

func (s *fakeStore) ListReviewed(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.evaluations {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) ExportDialog(ctx context.Context, dialogID, format string) ([]byte, error) {
	return []byte(format + ":" + dialogID), nil
}

func (s *fakeStore) UploadDialog(ctx context.Context, raw []byte) (string, error) {
	return "", &annotation.TransportError{Op: "upload", StatusCode: 501}
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}

// press sends each key to the app and runs whatever command it returns.
func press(t *testing.T, app *App, keys ...tea.KeyMsg) *App {
	t.Helper()
	for _, k := range keys {
		model, cmd := app.Update(k)
		app = runCommands(t, model, cmd)
	}
	return app
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func startedApp(t *testing.T, store *fakeStore) *App {
	t.Helper()
	session := annotation.NewSession(store, annotation.SessionConfig{})
	app := New(context.Background(), session, t.TempDir())
	model, _ := app.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return runCommands(t, model, app.Init())
}

func TestStartOpensFirstDialog(t *testing.T) {
	app := startedApp(t, newFakeStore("train_0", "train_1"))

	if got := app.current(); got != "train_0" {
		t.Fatalf("selected %q, expected train_0", got)
	}
	if app.loading || app.statusErr || app.status != "Opened train_0" {
		t.Errorf("status = %q (err=%v, loading=%v)", app.status, app.statusErr, app.loading)
	}
	view := app.View()
	for _, want := range []string{"0/2 reviewed", "train_1", "Pending", "Aku kesal dengan adikku"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}

func TestStartWithoutDialogs(t *testing.T) {
	app := startedApp(t, newFakeStore())
	if app.current() != "" || !strings.Contains(app.status, "No dialogs yet") {
		t.Errorf("status = %q", app.status)
	}
	if cmd := app.submit(); cmd != nil {
		t.Error("submit without a dialog returned a command")
	}
}

func TestReactionsAndTags(t *testing.T) {
	app := startedApp(t, newFakeStore("train_0"))
	app = press(t, app,
		key(tea.KeyTab), key(tea.KeyDown),
		runes("d"), runes("1"), runes("3"),
	)
	if app.mode != inputCustomTag {
		t.Fatalf("mode = %v, expected custom tag input", app.mode)
	}
	app = press(t, app, runes("Empati kurang"), key(tea.KeyEnter))

	fb := app.session.Feedback().Feedback(1)
	if fb.Rating != annotation.RatingDislike {
		t.Errorf("rating = %v, expected dislike", fb.Rating)
	}
	expected := []string{annotation.TagClarification, annotation.TagOther, "Empati kurang"}
	if !slices.Equal(fb.Tags, expected) {
		t.Errorf("tags = %v, expected %v", fb.Tags, expected)
	}

	// Pressing the reaction again clears it; the first message stays untouched.
	app = press(t, app, runes("d"), key(tea.KeyUp), runes("l"))
	if got := app.session.Feedback().Feedback(1).Rating; got != annotation.RatingNone {
		t.Errorf("rating after second press = %v", got)
	}
	if got := app.session.Feedback().Feedback(0).Rating; got != annotation.RatingLike {
		t.Errorf("first message rating = %v", got)
	}
}

func TestCustomTagCancelled(t *testing.T) {
	app := startedApp(t, newFakeStore("train_0"))
	app = press(t, app, key(tea.KeyTab), runes("3"), runes("abc"), key(tea.KeyEsc))
	if app.mode != inputNone {
		t.Fatalf("mode = %v after esc", app.mode)
	}
	if fb := app.session.Feedback().Feedback(0); fb.IsSet() {
		t.Errorf("feedback = %+v, expected nothing", fb)
	}
}

func TestSubmitFlow(t *testing.T) {
	store := newFakeStore("train_0", "train_1")
	app := startedApp(t, store)

	app = press(t, app, runes("s"))
	if !app.statusErr || !strings.Contains(app.status, "Cannot submit") {
		t.Fatalf("incomplete submit status = %q", app.status)
	}

	app = press(t, app, key(tea.KeyTab), key(tea.KeyTab), key(tea.KeyRight), key(tea.KeyRight))
	for range annotation.Metrics {
		app = press(t, app, key(tea.KeyDown), runes("4"))
	}
	app = press(t, app, key(tea.KeyDown), key(tea.KeySpace))
	app = press(t, app, key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter))
	if app.mode != inputNotes {
		t.Fatalf("mode = %v, expected notes input", app.mode)
	}
	app = press(t, app, runes("respon kurang hangat"), key(tea.KeyEnter))

	app = press(t, app, runes("s"))
	if app.statusErr || app.status != "Evaluation saved, moved to train_1" {
		t.Fatalf("status = %q", app.status)
	}
	saved := store.evaluations["train_0"]
	if saved.OverallQuality != annotation.QualityFair || saved.Score(annotation.MetricEmpathy) != 4 {
		t.Errorf("saved evaluation = %+v", saved)
	}
	if !slices.Equal(saved.Issues, []string{annotation.IssueFactualError}) || saved.Notes != "respon kurang hangat" {
		t.Errorf("issues/notes = %v %q", saved.Issues, saved.Notes)
	}
	if !strings.Contains(app.View(), "1/2 reviewed") {
		t.Error("progress not refreshed after submit")
	}
}

func TestStaleOpenIsDropped(t *testing.T) {
	app := startedApp(t, newFakeStore("train_0", "train_1"))

	first := openCmd(app.ctx, app.session, "train_0")()
	second := openCmd(app.ctx, app.session, "train_1")()

	model, _ := app.Update(second)
	model, _ = model.Update(first)
	app = model.(*App)

	if app.current() != "train_1" || app.status != "Opened train_1" {
		t.Errorf("selection %q, status %q", app.current(), app.status)
	}
	if d := app.session.Dialog(); d == nil || d.ID != "train_1" {
		t.Errorf("dialog = %+v", d)
	}
}

func TestSearchFiltersList(t *testing.T) {
	app := startedApp(t, newFakeStore("train_0", "train_1", "test_2"))

	app = press(t, app, runes("/"), runes("TRAIN_1"))
	if items := app.visibleDialogs(); len(items) != 1 || items[0].ID != "train_1" {
		t.Fatalf("filtered = %+v", items)
	}
	app = press(t, app, key(tea.KeyEnter), key(tea.KeyEnter))
	if app.current() != "train_1" {
		t.Errorf("opened %q from the filtered list", app.current())
	}

	app = press(t, app, runes("/"), key(tea.KeyEsc))
	if app.filter != "" || len(app.visibleDialogs()) != 3 {
		t.Errorf("filter %q not cleared", app.filter)
	}
}

func TestSkip(t *testing.T) {
	app := press(t, startedApp(t, newFakeStore("train_0", "train_1")), runes("n"))
	if app.current() != "train_1" {
		t.Errorf("skipped to %q", app.current())
	}

	single := press(t, startedApp(t, newFakeStore("train_0")), runes("n"))
	if single.current() != "train_0" || single.status != "No other dialog to move to" {
		t.Errorf("single dialog skip: %q, %q", single.current(), single.status)
	}
}

func TestExportWritesFile(t *testing.T) {
	app := startedApp(t, newFakeStore("train/0"))
	app = press(t, app, runes("E"))
	if app.statusErr {
		t.Fatalf("export failed: %s", app.status)
	}
	data, err := os.ReadFile(filepath.Join(app.exportDir, "train_0_export.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "csv:train/0" {
		t.Errorf("export = %q", data)
	}
}

func TestCycleQuality(t *testing.T) {
	tests := []struct {
		from     annotation.Quality
		step     int
		expected annotation.Quality
	}{
		{"", 1, annotation.QualityPoor},
		{"", -1, annotation.QualityExcellent},
		{annotation.QualityPoor, 1, annotation.QualityFair},
		{annotation.QualityExcellent, 1, annotation.QualityPoor},
		{annotation.QualityPoor, -1, annotation.QualityExcellent},
	}
	for _, tt := range tests {
		if got := cycleQuality(tt.from, tt.step); got != tt.expected {
			t.Errorf("cycleQuality(%q, %d) = %q, expected %q", tt.from, tt.step, got, tt.expected)
		}
	}
}
