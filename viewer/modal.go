// Package viewer holds the detail view state: which jersey is shown, which
// of its images is selected, and which overlay currently owns the screen.
package viewer

import "github.com/eringen/jerseyfolio/catalog"

// Keys understood by HandleKey.
const (
	KeyEscape = "esc"
	KeyLeft   = "left"
	KeyRight  = "right"
)

// Modal is the detail overlay. The zero value is closed.
type Modal struct {
	open     bool
	jersey   catalog.Jersey
	index    int
	scrollLk bool
}

// Open shows j starting at its first image.
func (m *Modal) Open(j catalog.Jersey) {
	m.open = true
	m.jersey = j
	m.index = 0
	m.scrollLk = true
}

// Close hides the modal and releases the scroll lock. Closing a closed
// modal is a no-op.
func (m *Modal) Close() {
	m.open = false
	m.index = 0
	m.scrollLk = false
}

// IsOpen reports whether the modal is showing.
func (m *Modal) IsOpen() bool { return m.open }

// ScrollLocked reports whether the page behind the modal must not scroll.
func (m *Modal) ScrollLocked() bool { return m.scrollLk }

// Current returns the displayed jersey and whether the modal is open.
func (m *Modal) Current() (catalog.Jersey, bool) {
	return m.jersey, m.open
}

// Index returns the selected image index.
func (m *Modal) Index() int { return m.index }

// Prev selects the previous image, stopping at the first.
func (m *Modal) Prev() bool {
	if !m.open || m.index == 0 {
		return false
	}
	m.index--
	return true
}

// Next selects the next image, stopping at the last.
func (m *Modal) Next() bool {
	if !m.open || m.index >= len(m.jersey.Images)-1 {
		return false
	}
	m.index++
	return true
}

// Select jumps to image i, as a thumbnail click does. Out of range indexes
// are ignored.
func (m *Modal) Select(i int) bool {
	if !m.open || i < 0 || i >= len(m.jersey.Images) || i == m.index {
		return false
	}
	m.index = i
	return true
}

// HandleKey applies a keyboard binding and reports whether it changed
// anything. Keys are ignored while the modal is closed.
func (m *Modal) HandleKey(key string) bool {
	if !m.open {
		return false
	}
	switch key {
	case KeyEscape:
		m.Close()
		return true
	case KeyLeft:
		return m.Prev()
	case KeyRight:
		return m.Next()
	}
	return false
}

// Image returns the selected image filename, or "" when closed or empty.
func (m *Modal) Image() string {
	if !m.open || len(m.jersey.Images) == 0 {
		return ""
	}
	return m.jersey.Images[m.index]
}

// Counter returns the 1-based position of the selected image and the total.
func (m *Modal) Counter() (current, total int) {
	if !m.open || len(m.jersey.Images) == 0 {
		return 0, 0
	}
	return m.index + 1, len(m.jersey.Images)
}

// CanPrev reports whether Prev would move.
func (m *Modal) CanPrev() bool { return m.open && m.index > 0 }

// CanNext reports whether Next would move.
func (m *Modal) CanNext() bool { return m.open && m.index < len(m.jersey.Images)-1 }
