// Package tui is the interactive terminal client: the public gallery, the
// detail viewer and the admin panel, redrawn from their view models on every
// change.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/gallery"
	"github.com/eringen/jerseyfolio/viewer"
)

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputTitle
)

// Config wires a Model to its collaborators.
type Config struct {
	Context context.Context
	Gallery *gallery.Gallery
	// Panel is nil when the client has no admin session.
	Panel *adminpanel.Panel
	// Events delivers change notifications; nil disables live reload.
	Events <-chan broadcast.Message
}

// Model is the bubbletea model of the terminal client.
type Model struct {
	ctx     context.Context
	gallery *gallery.Gallery
	panel   *adminpanel.Panel
	events  <-chan broadcast.Message

	keys   keyMap
	styles Styles
	stage  viewer.Stage
	input  textinput.Model
	mode   inputMode

	view   gallery.ViewModel
	admin  adminpanel.PageView
	cursor int
	status string
	width  int
	height int
}

type loadedMsg struct{ err error }

type adminMsg struct {
	err    error
	status string
}

type eventMsg broadcast.Message

// New returns a model over cfg. Nothing is loaded until Init runs.
func New(cfg Config) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ti := textinput.New()
	ti.CharLimit = 120
	return Model{
		ctx:     ctx,
		gallery: cfg.Gallery,
		panel:   cfg.Panel,
		events:  cfg.Events,
		keys:    defaultKeys(),
		styles:  DefaultStyles(),
		input:   ti,
		view:    cfg.Gallery.View(),
		width:   80,
		height:  24,
	}
}

// Init loads the gallery and starts listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.galleryCmd(m.gallery.Load), m.waitForEvent())
}

func (m Model) galleryCmd(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return loadedMsg{err: fn(ctx)} }
}

func (m Model) adminCmd(fn func(context.Context) error, done string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return adminMsg{err: err}
		}
		return adminMsg{status: done}
	}
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(msg)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 12
		return m, nil

	case loadedMsg:
		m.view = m.gallery.View()
		m.cursor = clamp(m.cursor, len(m.view.Cards))
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
		}
		return m, nil

	case adminMsg:
		if m.panel != nil {
			m.admin = m.panel.Page()
			m.cursor = clamp(m.cursor, len(m.admin.Rows))
		}
		m.status = msg.status
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		}
		return m, nil

	case eventMsg:
		m.status = "catalog updated (" + string(msg.Type) + ")"
		cmds := []tea.Cmd{m.galleryCmd(m.gallery.Load), m.waitForEvent()}
		if m.panel != nil && m.stage.AdminPanel() && !m.panel.Dirty() {
			cmds = append(cmds, m.adminCmd(m.panel.Load, ""))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.stage.Active() == viewer.OverlayDetail {
			m.stage.HandleKey(msg.String())
			return m, nil
		}
		if m.stage.AdminPanel() {
			return m.updateAdmin(msg)
		}
		return m.updateGallery(msg)
	}
	return m, nil
}

func (m Model) updateGallery(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.view.State
	pg := m.view.Pagination
	switch {
	case key.Matches(msg, m.keys.PrevPage):
		if pg.HasPrev {
			m.cursor = 0
			return m, m.galleryCmd(func(ctx context.Context) error { return m.gallery.GoToPage(ctx, pg.CurrentPage-1) })
		}
	case key.Matches(msg, m.keys.NextPage):
		if pg.HasNext {
			m.cursor = 0
			return m, m.galleryCmd(func(ctx context.Context) error { return m.gallery.GoToPage(ctx, pg.CurrentPage+1) })
		}
	case key.Matches(msg, m.keys.Up):
		m.cursor = clamp(m.cursor-1, len(m.view.Cards))
	case key.Matches(msg, m.keys.Down):
		m.cursor = clamp(m.cursor+1, len(m.view.Cards))
	case key.Matches(msg, m.keys.Category):
		next := nextCategory(m.view.Filters)
		m.cursor = 0
		return m, m.galleryCmd(func(ctx context.Context) error { return m.gallery.SetCategory(ctx, next) })
	case key.Matches(msg, m.keys.Search):
		m.mode = inputSearch
		m.input.Placeholder = "search title, description, tags"
		m.input.SetValue(state.Search)
		m.input.Focus()
	case key.Matches(msg, m.keys.Sort):
		next := nextSort(state.Sort)
		m.cursor = 0
		return m, m.galleryCmd(func(ctx context.Context) error { return m.gallery.SetSort(ctx, next, state.Order) })
	case key.Matches(msg, m.keys.Order):
		order := catalog.Asc
		if state.Order == catalog.Asc {
			order = catalog.Desc
		}
		m.cursor = 0
		return m, m.galleryCmd(func(ctx context.Context) error { return m.gallery.SetSort(ctx, state.Sort, order) })
	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(m.view.Cards) {
			if err := m.stage.OpenDetail(m.view.Cards[m.cursor].Jersey); err != nil {
				m.status = err.Error()
			}
		}
	case key.Matches(msg, m.keys.Reload):
		return m, m.galleryCmd(m.gallery.Load)
	case key.Matches(msg, m.keys.Admin):
		if m.panel == nil {
			m.status = "admin is not available: log in with --username"
			return m, nil
		}
		m.stage.SetAdminPanel(true)
		m.cursor = 0
		return m, m.adminCmd(m.panel.Load, "")
	}
	return m, nil
}

func (m Model) updateAdmin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Admin), key.Matches(msg, m.keys.Back):
		m.stage.SetAdminPanel(false)
		m.cursor = 0
		if m.panel.Dirty() {
			m.status = "unsaved edits kept"
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.panel.GoToPage(m.admin.Pagination.CurrentPage - 1) {
			m.admin = m.panel.Page()
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.NextPage):
		if m.panel.GoToPage(m.admin.Pagination.CurrentPage + 1) {
			m.admin = m.panel.Page()
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.Up):
		m.cursor = clamp(m.cursor-1, len(m.admin.Rows))
	case key.Matches(msg, m.keys.Down):
		m.cursor = clamp(m.cursor+1, len(m.admin.Rows))
	case key.Matches(msg, m.keys.Edit):
		if m.cursor < len(m.admin.Rows) {
			row := m.admin.Rows[m.cursor]
			m.stage.OpenAdminEdit(row.Jersey.ID)
			m.mode = inputTitle
			m.input.Placeholder = "title"
			m.input.SetValue(row.Title)
			m.input.Focus()
		}
	case key.Matches(msg, m.keys.Save):
		return m, m.adminCmd(m.panel.Save, "saved")
	case key.Matches(msg, m.keys.Reload):
		return m, m.adminCmd(m.panel.Load, "reloaded")
	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(m.admin.Rows) {
			if err := m.stage.OpenDetail(m.admin.Rows[m.cursor].Jersey); errors.Is(err, viewer.ErrAdminPanelOpen) {
				m.status = "close the admin panel to open the detail view"
			}
		}
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.mode == inputTitle {
			m.stage.CloseAdminEdit()
		}
		m.mode = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := m.input.Value()
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()
		switch mode {
		case inputSearch:
			m.cursor = 0
			return m, m.galleryCmd(func(ctx context.Context) error { return m.gallery.SetSearch(ctx, value) })
		case inputTitle:
			id, _ := m.stage.Editing()
			m.stage.CloseAdminEdit()
			if err := m.panel.Edit(id, adminpanel.Changes{Title: &value}); err != nil {
				m.status = err.Error()
				return m, nil
			}
			m.admin = m.panel.Page()
			m.status = "edited " + id + ", press w to save"
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("jerseyfolio"))
	b.WriteString("\n\n")

	switch {
	case m.stage.Active() == viewer.OverlayDetail:
		b.WriteString(m.renderDetail())
	case m.stage.AdminPanel():
		b.WriteString(m.renderAdmin())
	default:
		b.WriteString(m.renderGallery())
	}

	if m.mode != inputNone {
		b.WriteString("\n" + m.input.View())
	}
	if m.status != "" {
		b.WriteString("\n" + m.styles.Status.Render(m.status))
	}
	b.WriteString("\n" + m.renderHelp())
	return b.String()
}

func (m Model) renderGallery() string {
	var b strings.Builder
	filters := make([]string, 0, len(m.view.Filters))
	for _, f := range m.view.Filters {
		st := m.styles.Filter
		if f.Active {
			st = m.styles.FilterOn
		}
		filters = append(filters, st.Render(f.Name))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, filters...))
	state := m.view.State
	b.WriteString(m.styles.Meta.Render(fmt.Sprintf("  sort: %s %s", state.Sort, state.Order)))
	if state.Search != "" {
		b.WriteString(m.styles.Meta.Render(fmt.Sprintf("  search: %q", state.Search)))
	}
	b.WriteString("\n\n")

	if m.view.Err != nil {
		b.WriteString(m.styles.Error.Render("Could not load the catalog. Press r to retry."))
		b.WriteString("\n")
	}
	if m.view.Empty() {
		b.WriteString(m.styles.Meta.Render("No jerseys match."))
		b.WriteString("\n")
	}
	for i, c := range m.view.Cards {
		line := m.styles.Title.Render(c.Title)
		if c.Year != "" {
			line += m.styles.Meta.Render("  " + c.Year)
		}
		line += "  " + chip(c.Category.Name, c.Category.Color)
		for _, t := range c.Tags {
			line += " " + chip(t.Name, t.Color)
		}
		st := m.styles.Card
		if i == m.cursor {
			st = m.styles.CardCursor
		}
		b.WriteString(st.Render(line))
		b.WriteString("\n")
	}
	pg := m.view.Pagination
	if pg.TotalPages > 0 {
		b.WriteString(m.styles.Meta.Render(fmt.Sprintf("\npage %d of %d (%d jerseys)", pg.CurrentPage, pg.TotalPages, pg.TotalItems)))
	}
	return b.String()
}

func (m Model) renderDetail() string {
	j, _ := m.stage.Detail.Current()
	settings := m.gallery.Settings()
	cur, total := m.stage.Detail.Counter()

	lines := []string{m.styles.Title.Render(j.DisplayTitle())}
	if !j.Year.IsZero() {
		lines = append(lines, m.styles.Meta.Render(j.Year.String()))
	}
	if d := strings.TrimSpace(j.Description); d != "" {
		lines = append(lines, "", d)
	}
	nav := fmt.Sprintf("image %d/%d  %s", cur, total, settings.ImageURL(m.stage.Detail.Image()))
	arrows := ""
	if m.stage.Detail.CanPrev() {
		arrows += "← "
	}
	if m.stage.Detail.CanNext() {
		arrows += "→"
	}
	lines = append(lines, "", nav, m.styles.Meta.Render(arrows))
	return m.styles.Modal.Render(strings.Join(lines, "\n"))
}

func (m Model) renderAdmin() string {
	var b strings.Builder
	head := fmt.Sprintf("admin  %d jerseys", m.admin.Pagination.TotalItems)
	b.WriteString(m.styles.AdminHeader.Render(head))
	if m.admin.Dirty > 0 {
		b.WriteString(" " + m.styles.Dirty.Render(fmt.Sprintf("%d unsaved", m.admin.Dirty)))
	}
	b.WriteString("\n\n")
	editing, _ := m.stage.Editing()
	for i, r := range m.admin.Rows {
		cats := make([]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			cats = append(cats, chip(c.Name, c.Color))
		}
		line := fmt.Sprintf("%-6s %s  %s", r.Jersey.ID, r.Title, strings.Join(cats, " "))
		if r.Dirty {
			line += " " + m.styles.Dirty.Render("*")
		}
		if r.Jersey.ID == editing {
			line += m.styles.Meta.Render("  (editing)")
		}
		st := m.styles.Card
		if i == m.cursor {
			st = m.styles.CardCursor
		}
		b.WriteString(st.Render(line))
		b.WriteString("\n")
	}
	pg := m.admin.Pagination
	if pg.TotalPages > 0 {
		b.WriteString(m.styles.Meta.Render(fmt.Sprintf("\npage %d of %d", pg.CurrentPage, pg.TotalPages)))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	bindings := m.keys.galleryHelp()
	switch {
	case m.stage.Active() == viewer.OverlayDetail:
		bindings = []key.Binding{m.keys.PrevPage, m.keys.NextPage, m.keys.Back}
	case m.stage.AdminPanel():
		bindings = m.keys.adminHelp()
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.styles.Help.Render(strings.Join(parts, " • "))
}

func nextCategory(filters []gallery.FilterButton) string {
	for i, f := range filters {
		if f.Active {
			return filters[(i+1)%len(filters)].ID
		}
	}
	return catalog.AllCategories
}

var sortCycle = []catalog.SortKey{catalog.SortDate, catalog.SortName, catalog.SortYear}

func nextSort(cur catalog.SortKey) catalog.SortKey {
	for i, k := range sortCycle {
		if k == cur {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return catalog.SortDate
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
