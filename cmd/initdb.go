package cmd

import (
	"fmt"
	"io"

	"musicbox/db"
	"musicbox/storage"

	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "初始化数据库和媒体存储",
	Long:  `创建 users、songs、favorites 表（已存在则跳过），并确保媒体存储目录或存储桶可用。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, dialect, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.InitDB(ctx, conn, dialect); err != nil {
			return err
		}

		store, err := storage.New(ctx, cfg)
		if err != nil {
			return err
		}
		if c, ok := store.(io.Closer); ok {
			c.Close()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "数据库 (%s) 和媒体存储 (%s) 已就绪\n", dialect, cfg.MediaBackend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
