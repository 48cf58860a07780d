package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"botexecutor/cmd/executor"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
)

var APP_NAME = os.Getenv("APP_NAME")

// main runs the server alone, for deployments that do not use the CLI.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Warn("Failed to load .env")
	}
	executor.SetupLogger(executor.GetConfig())
	defer handlePanic()

	e := &executor.Executor{}
	if err := e.Start(); err != nil {
		logger.WithError(err).Fatal("Executor stopped with error")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
