package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/arturoeanton/docgraph/internal/importer"
)

// promptConfirmer asks on the terminal unless assumeYes is set. Aborting
// the prompt counts as a decline.
func promptConfirmer(assumeYes bool) importer.ConfirmFunc {
	return func(ctx context.Context, prompt string) (bool, error) {
		if assumeYes {
			return true, nil
		}
		var ok bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&ok),
		))
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, err
		}
		return ok, nil
	}
}
