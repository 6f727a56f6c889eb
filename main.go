package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Speshl/gorrc_swerve/internal/app"
	"github.com/Speshl/gorrc_swerve/internal/config"
	"github.com/Speshl/gorrc_swerve/internal/logging"
	socketio "github.com/googollee/go-socket.io"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "gorrc_swerve"
	cliApp.Usage = "swerve drive robot client"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "calibration",
			Usage: "yaml file with the drive section overriding module calibration",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides SWERVE_LOGLEVEL)",
		},
		cli.StringFlag{
			Name:  "log-encoding",
			Usage: "console or json (overrides SWERVE_LOGENCODING)",
		},
	}
	cliApp.Action = run

	err := cliApp.Run(os.Args)
	if err != nil {
		log.Fatalf("client shutdown with error: %s", err.Error())
	}
}

func run(c *cli.Context) error {
	logCfg := config.GetLogConfig()
	if c.String("log-level") != "" {
		logCfg.Level = c.String("log-level")
	}
	if c.String("log-encoding") != "" {
		logCfg.Encoding = c.String("log-encoding")
	}
	logger, err := logging.NewLogger(logging.Config{Level: logCfg.Level, Encoding: logCfg.Encoding})
	if err != nil {
		return fmt.Errorf("error creating logger - %w", err)
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger.Desugar())
	defer undo()

	cfg := config.GetConfig()
	cfg.LogCfg = logCfg
	if path := c.String("calibration"); path != "" {
		err = config.LoadCalibration(path, &cfg)
		if err != nil {
			return err
		}
	}
	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration - %w", err)
	}

	socketURI := fmt.Sprintf("http://%s", cfg.ServerCfg.Server)
	client, err := socketio.NewClient(socketURI, nil)
	if err != nil {
		return fmt.Errorf("error creating client - %w", err)
	}

	robotApp, err := app.NewApp(cfg, client, logger)
	if err != nil {
		return err
	}

	err = robotApp.RegisterHandlers()
	if err != nil {
		return err
	}

	err = robotApp.Start()
	if err != nil {
		return err
	}
	logger.Info("client shutdown successfully")
	return nil
}
