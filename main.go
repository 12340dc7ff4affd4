package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"remonitor/config"
	"remonitor/server"
	"remonitor/utils"
)

func main() {
	var confPath string
	flag.StringVar(&confPath, "config", "config.toml", "Path to config file")
	flag.StringVar(&confPath, "c", "config.toml", "Path to config file (shorthand)")
	flag.Parse()

	cfg, err := config.Load(confPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	utils.InitLogger(cfg.EnableLog)
	defer utils.Logger.Sync()

	utils.Logger.Info("remonitor starting",
		zap.Bool("tcp", cfg.UseTCP()),
		zap.Bool("uds", cfg.UseUDS()),
		zap.Int("workers", cfg.ThreadCount))

	srv, err := server.New(cfg)
	if err != nil {
		utils.Logger.Error("failed to build server", zap.Error(err))
		fmt.Println(err)
		os.Exit(1)
	}

	if err := srv.Serve(); err != nil {
		utils.Logger.Error("server exited", zap.Error(err))
		fmt.Println(err)
		os.Exit(1)
	}
}
