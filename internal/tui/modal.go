package tui

// ModalID names a dialog surface.
type ModalID string

const (
	ModalEmployee ModalID = "employee"
	ModalUpload   ModalID = "upload"
	ModalProfile  ModalID = "profile"
	ModalConfirm  ModalID = "confirm"
	ModalLogin    ModalID = "login"
)

// modalPrecedence decides which open surface gets the keyboard.
var modalPrecedence = []ModalID{ModalLogin, ModalConfirm, ModalProfile, ModalUpload, ModalEmployee}

// ModalController is a flat visibility map. Opening one surface never closes
// another.
type ModalController struct {
	open map[ModalID]bool
}

func NewModalController() *ModalController {
	return &ModalController{open: make(map[ModalID]bool)}
}

func (m *ModalController) Open(id ModalID)  { m.open[id] = true }
func (m *ModalController) Close(id ModalID) { delete(m.open, id) }

func (m *ModalController) IsOpen(id ModalID) bool { return m.open[id] }

// Top returns the open surface that receives input, if any.
func (m *ModalController) Top() (ModalID, bool) {
	for _, id := range modalPrecedence {
		if m.open[id] {
			return id, true
		}
	}
	return "", false
}
