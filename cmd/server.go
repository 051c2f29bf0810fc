package cmd

import (
	"musicbox/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动musicbox服务器",
	Long:  `启动musicbox的HTTP服务器，提供曲库、上传、收藏和登录页面`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
