package folders

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name    string
	query   string
	confirm bool
}

func (m Model) buildForm() *huh.Form {
	title := "New smart folder"
	if m.editing != nil {
		title = "Edit smart folder"
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title(title),
			huh.NewInput().
				Title("Name").
				Placeholder("Needs reply").
				Value(&m.fb.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Query").
				Placeholder("flag:unread AND NOT flag:trashed").
				Value(&m.fb.query).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("query is required")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight()).WithShowHelp(true)
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if e, ok := m.selected(); ok {
		name = e.Name
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete smart folder %q?", name)).
				Description("Messages are not touched. Undo restores the folder.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}
