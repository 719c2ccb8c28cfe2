package veonim

import (
	"context"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/attach"
)

// AttachOptions configures a viewer connection to a shared session.
type AttachOptions struct {
	Endpoint       string
	Token          string
	ClientID       string
	RequestControl bool
	Insecure       bool
	Logger         pslog.Logger
}

// Attach mirrors a shared session onto the local terminal until the
// connection ends or the context is canceled.
func Attach(ctx context.Context, opts AttachOptions) error {
	return (&attach.Client{
		Endpoint:       opts.Endpoint,
		Token:          opts.Token,
		ClientID:       opts.ClientID,
		RequestControl: opts.RequestControl,
		Insecure:       opts.Insecure,
		Logger:         opts.Logger,
	}).Run(ctx)
}
