package veonim

import (
	"context"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/session"
)

// EditOptions configures a local editor session.
type EditOptions struct {
	EditorCommand string
	EditorArgs    []string
	Files         []string
	Cols          int
	Rows          int

	// Publishing. A non-empty Endpoint shares the session through a
	// relay.
	Endpoint      string
	Token         string
	SessionID     string
	Title         string
	BufferBatches int
	Insecure      bool

	Logger pslog.Logger
}

// Edit runs an editor in the current terminal, optionally publishing
// the session to a relay.
func Edit(ctx context.Context, opts EditOptions) error {
	return session.New(session.Options{
		EditorCommand: opts.EditorCommand,
		EditorArgs:    opts.EditorArgs,
		Files:         opts.Files,
		Cols:          opts.Cols,
		Rows:          opts.Rows,
		Endpoint:      opts.Endpoint,
		Token:         opts.Token,
		SessionID:     opts.SessionID,
		Title:         opts.Title,
		BufferBatches: opts.BufferBatches,
		Insecure:      opts.Insecure,
		Logger:        opts.Logger,
	}).Run(ctx)
}
