package viewer

import (
	"errors"

	"github.com/eringen/jerseyfolio/catalog"
)

// Overlay identifies a screen overlay.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayAdminEdit
)

func (o Overlay) String() string {
	switch o {
	case OverlayDetail:
		return "detail"
	case OverlayAdminEdit:
		return "admin-edit"
	}
	return "none"
}

// ErrAdminPanelOpen is returned when the detail view is requested while the
// admin panel is showing.
var ErrAdminPanelOpen = errors.New("viewer: admin panel is open")

// Stage owns the overlays so that at most one is visible: opening one
// closes the other.
type Stage struct {
	Detail Modal

	editing    string
	adminPanel bool
}

// OpenDetail shows the detail modal for j, closing any admin edit overlay.
func (s *Stage) OpenDetail(j catalog.Jersey) error {
	if s.adminPanel {
		return ErrAdminPanelOpen
	}
	s.editing = ""
	s.Detail.Open(j)
	return nil
}

// OpenAdminEdit shows the admin edit overlay for jersey id, closing the
// detail modal.
func (s *Stage) OpenAdminEdit(id string) {
	s.Detail.Close()
	s.editing = id
}

// CloseAdminEdit hides the admin edit overlay.
func (s *Stage) CloseAdminEdit() {
	s.editing = ""
}

// Editing returns the jersey id in the admin edit overlay, if any.
func (s *Stage) Editing() (string, bool) {
	return s.editing, s.editing != ""
}

// SetAdminPanel records whether the admin panel is showing. Showing it
// closes the detail modal.
func (s *Stage) SetAdminPanel(open bool) {
	s.adminPanel = open
	if open {
		s.Detail.Close()
	} else {
		s.editing = ""
	}
}

// AdminPanel reports whether the admin panel is showing.
func (s *Stage) AdminPanel() bool { return s.adminPanel }

// Active returns the visible overlay.
func (s *Stage) Active() Overlay {
	switch {
	case s.Detail.IsOpen():
		return OverlayDetail
	case s.editing != "":
		return OverlayAdminEdit
	}
	return OverlayNone
}

// HandleKey routes a key to the visible overlay. Escape closes the admin
// edit overlay; every other key goes to the detail modal.
func (s *Stage) HandleKey(key string) bool {
	switch s.Active() {
	case OverlayDetail:
		return s.Detail.HandleKey(key)
	case OverlayAdminEdit:
		if key == KeyEscape {
			s.CloseAdminEdit()
			return true
		}
	}
	return false
}
