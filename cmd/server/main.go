package main

import (
	"github.com/MohammadH3218/encryptgate-copilot/internal/server"
	"github.com/MohammadH3218/encryptgate-copilot/internal/util"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
