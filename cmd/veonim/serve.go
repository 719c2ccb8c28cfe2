package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/damianesteban/veonim"
	"pkt.systems/pslog"
)

// NewServeCommand builds the relay/server command.
func NewServeCommand(loader *veonim.Loader) *cobra.Command {
	v := loader.Viper()
	v.SetDefault("serve.listen", veonim.DefaultListenAddr)
	v.SetDefault("serve.base", veonim.DefaultBasePath)
	v.SetDefault("serve.buffer_batches", veonim.DefaultBufferBatches)
	v.SetDefault("serve.tls.mode", veonim.DefaultTLSMode)
	v.SetDefault("serve.tls.dir", veonim.DefaultTLSDir())
	v.SetDefault("serve.tls.cache_dir", veonim.DefaultTLSCacheDir())

	var bindErr error
	var headless bool
	var shareTTL time.Duration
	var noQR bool

	cmd := &cobra.Command{
		Use:   "serve [files...]",
		Short: "Host a shared session behind a relay",
		Long: `Serve starts the relay, prints share URLs for the control and
view scopes, and runs an editor session published into the relay. With
--headless only the relay runs and hosts publish into it themselves.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bindErr != nil {
				return bindErr
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			var logger pslog.Logger
			if headless {
				logger = pslog.Ctx(cmd.Context()).With("component", "serve")
			} else {
				// The embedded session takes over the terminal, so logs
				// go to the client log file instead of stdout.
				logPath := cfg.LogFile
				if logPath == "" {
					logPath = veonim.DefaultLogPath()
				}
				fileLogger, closer, err := openClientLogger(logPath)
				if err != nil {
					return err
				}
				defer func() {
					_ = closer.Close()
				}()
				logger = fileLogger.With("component", "serve")
			}
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			return veonim.Serve(ctx, veonim.ServeOptions{
				Config:   cfg,
				Files:    args,
				Headless: headless,
				ShareTTL: shareTTL,
				NoQR:     noQR,
				Logger:   logger,
				Stdout:   os.Stdout,
			})
		},
	}

	flags := cmd.Flags()
	flags.String("listen", veonim.DefaultListenAddr, "listen address for the relay server")
	flags.String("base", veonim.DefaultBasePath, "base path prefix for all HTTP routes")
	flags.Int("buffer-batches", veonim.DefaultBufferBatches, "redraw batches buffered per viewer")
	flags.String("tls-mode", veonim.DefaultTLSMode, "tls mode: off, auto, bundle, or acme")
	flags.StringArray("tls-bundle", nil, "path to PEM bundle file (repeatable)")
	flags.String("tls-dir", veonim.DefaultTLSDir(), "tls directory")
	flags.String("tls-cache-dir", veonim.DefaultTLSCacheDir(), "tls cache directory for acme")
	flags.String("tls-hostname", "", "public hostname for acme or share URLs")
	flags.BoolVar(&headless, "headless", false, "run the relay without an embedded session")
	flags.DurationVar(&shareTTL, "share-ttl", 0, "share token lifetime (0 means the process lifetime)")
	flags.BoolVar(&noQR, "no-qr", false, "skip the QR code when printing share URLs")

	bind := func(key, name string) {
		if bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			bindErr = err
		}
	}

	bind("serve.listen", "listen")
	bind("serve.base", "base")
	bind("serve.buffer_batches", "buffer-batches")
	bind("serve.tls.mode", "tls-mode")
	bind("serve.tls.bundle", "tls-bundle")
	bind("serve.tls.dir", "tls-dir")
	bind("serve.tls.cache_dir", "tls-cache-dir")
	bind("serve.tls.hostname", "tls-hostname")

	return cmd
}
