package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version はビルド時に -ldflags "-X github.com/hitoshi/storefront/internal/app.Version=..." で埋め込む。
var Version = "dev"

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドを省略した場合はserveとして起動する。
func Run(ctx context.Context, w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand はstorefrontのルートコマンドを生成する。
// wはログとコマンド出力の書き込み先。
func NewRootCommand(w io.Writer) *cobra.Command {
	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := Init(w)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}

		slog.Info("starting application",
			slog.String("version", Version),
			slog.String("port", cfg.ServerPort),
			slog.String("store_driver", cfg.StoreDriver),
		)
		return runServe(cmd.Context(), cfg)
	}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront commerce state engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})

	root.AddCommand(newMigrateCommand(w))
	root.AddCommand(newHealthcheckCommand())

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storefront %s\n", Version)
		},
	})

	return root
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (postgres store only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg, down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}

// newHealthcheckCommand は設定の読み込みを行わない軽量なヘルスチェックコマンドを生成する。
func newHealthcheckCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that the local API server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", defaultPort(), "Port of the local API server")
	return cmd
}

func defaultPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}
