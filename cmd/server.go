package cmd

import (
	"StuffChat/config"
	"StuffChat/server"

	"github.com/spf13/cobra"
)

var listenAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动房间服务",
	Long:  `启动 WebSocket 房间 hub 以及一起听的 HTTP 接口`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		server.Start(cfg)
	},
}

func init() {
	serverCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "监听地址，覆盖 STUFFCHAT_LISTEN_ADDR")
	rootCmd.AddCommand(serverCmd)
}
