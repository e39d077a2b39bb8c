package cmd

import (
	"fmt"
	"log"
	"time"

	"StuffChat/config"
	"StuffChat/core/auth"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user_id>",
	Short: "签发本地调试用的访问令牌",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		token, err := auth.NewTokenManager(cfg.JWTSecret).IssueToken(args[0], tokenTTL)
		if err != nil {
			log.Fatalf("签发失败: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "有效期")
	rootCmd.AddCommand(tokenCmd)
}
