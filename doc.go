// Package notetaker is the composition root of the notebook.
//
// It wires a storage adapter (Markdown files with optional git history,
// SQLite, or memory) to the notebook service, which keeps notes in memory,
// saves edits after a debounce window, records a version before each
// overwrite and files notes into projects and subjects from the analysis of
// a language model.
//
// Usage:
//
//	app, err := notetaker.New(ctx, "./vault",
//		notetaker.WithAdapter(notetaker.AdapterSQLite),
//		notetaker.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer app.Close(ctx)
//
//	n, err := app.Create(ctx, notebook.Draft{Title: "Groceries", Content: "milk"})
package notetaker
