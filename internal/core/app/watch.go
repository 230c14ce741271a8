package app

import (
	"context"

	"pyintel/internal/core/watcher"
)

// StartWatcher opens the symbol index and feeds file changes below the
// search roots into HandleChanges until Close.
func (a *App) StartWatcher(ctx context.Context) error {
	if err := a.OpenSymbolIndex(ctx); err != nil {
		return err
	}
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Watch.ExcludeDirs,
		a.Config.Watch.ExcludeFiles,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	a.activeWatcher = w
	return w.Watch(a.Paths.SearchRoots)
}
