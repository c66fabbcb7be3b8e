package main

import (
	"os"

	"github.com/timmy/adnreport/internal/logger"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)

	if err := newRootCmd(appLogger).Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
