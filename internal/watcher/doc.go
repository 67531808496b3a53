// Package watcher provides file system watching for document
// directories with automatic debouncing.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Events are debounced to coalesce rapid changes from editors and sync
// tools, and filtered to supported document formats; hidden files and
// directories are skipped.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewDocumentWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() {
//	    for batch := range w.Events() {
//	        for _, event := range batch {
//	            switch event.Operation {
//	            case watcher.OpCreate, watcher.OpModify:
//	                // Re-ingest the file
//	            case watcher.OpDelete:
//	                // Removed from disk; picked up by the next full index
//	            }
//	        }
//	    }
//	}()
//
//	if err := w.Start(ctx, "/path/to/docs"); err != nil {
//	    return err
//	}
package watcher
