package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"elfbaby/cmd/commands"
)

// @title           ElfBaby Storefront API
// @version         1.0
// @description     礼品导购前台只读接口：商品、商家、分类与社交文案
// @BasePath        /
// @schemes         http https
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		stop()
		os.Exit(1)
	}
}
