package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/damianesteban/veonim"
	"pkt.systems/pslog"
)

// NewRootCommand builds the root CLI command: an editor session in the
// current terminal, optionally published to a relay.
func NewRootCommand(loader *veonim.Loader) *cobra.Command {
	var configFile string
	var editorCmd string
	var editorArgs []string
	var cols int
	var rows int
	var endpoint string
	var token string
	var sessionID string
	var title string
	var bufferBatches int
	var insecure bool

	v := loader.Viper()
	v.SetDefault("editor.command", veonim.DefaultEditorCommand)
	v.SetDefault("log_file", veonim.DefaultLogPath())

	cmd := &cobra.Command{
		Use:   "veonim [files...]",
		Short: "Terminal Neovim with session sharing",
		Args:  cobra.ArbitraryArgs,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if configFile != "" {
				loader.SetConfigFile(configFile)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			editorValue := editorCmd
			if !cmd.Flags().Changed("editor") {
				editorValue = cfg.Editor.Command
			}
			argsValue := editorArgs
			if !cmd.Flags().Changed("editor-arg") {
				argsValue = cfg.Editor.Args
			}
			colsValue := cols
			if !cmd.Flags().Changed("cols") {
				colsValue = cfg.Editor.Cols
			}
			rowsValue := rows
			if !cmd.Flags().Changed("rows") {
				rowsValue = cfg.Editor.Rows
			}
			bufferValue := cfg.Serve.BufferBatches
			if cmd.Flags().Changed("buffer-batches") {
				bufferValue = bufferBatches
			}

			tokenValue := token
			if endpoint != "" && tokenValue == "" {
				if entry, ok := veonim.LookupShare(endpoint, time.Now().UTC()); ok {
					tokenValue = entry.Token
				}
			}

			logPath := cfg.LogFile
			if logPath == "" {
				logPath = veonim.DefaultLogPath()
			}
			logger, closer, err := openClientLogger(logPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = closer.Close()
			}()
			logger = logger.With("component", "edit")
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			return veonim.Edit(ctx, veonim.EditOptions{
				EditorCommand: editorValue,
				EditorArgs:    argsValue,
				Files:         args,
				Cols:          colsValue,
				Rows:          rowsValue,
				Endpoint:      endpoint,
				Token:         tokenValue,
				SessionID:     sessionID,
				Title:         title,
				BufferBatches: bufferValue,
				Insecure:      insecure,
				Logger:        logger,
			})
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	flags := cmd.Flags()
	flags.StringVar(&editorCmd, "editor", veonim.DefaultEditorCommand, "editor binary to embed")
	flags.StringArrayVar(&editorArgs, "editor-arg", nil, "extra editor argument (repeatable)")
	flags.IntVar(&cols, "cols", 0, "grid columns (0 follows the terminal)")
	flags.IntVar(&rows, "rows", 0, "grid rows (0 follows the terminal)")
	flags.StringVarP(&endpoint, "endpoint", "e", "", "publish the session to this relay (wss base URL)")
	flags.StringVarP(&token, "token", "t", "", "control share token for publishing")
	flags.StringVar(&sessionID, "session", "", "session id (defaults to the host name)")
	flags.StringVar(&title, "title", "", "session title shown to viewers")
	flags.IntVar(&bufferBatches, "buffer-batches", veonim.DefaultBufferBatches, "redraw batches buffered while the relay is unreachable")
	flags.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")

	cmd.AddCommand(NewAttachCommand(loader))
	cmd.AddCommand(NewServeCommand(loader))
	cmd.AddCommand(NewShareCommand())
	cmd.AddCommand(NewTLSCommand())
	cmd.AddCommand(NewBootstrapCommand())

	return cmd
}
