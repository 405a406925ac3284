package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"todoapp/internal/cache"
	"todoapp/internal/config"
	"todoapp/internal/logging"
	"todoapp/internal/seed"
	"todoapp/internal/service"
	"todoapp/internal/store"
	"todoapp/internal/timefmt"
)

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "import users and tasks from a JSON fixture",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "from",
				Aliases:  []string{"f"},
				Usage:    "fixture file path or http(s) URL",
				EnvVars:  []string{"SEED_SOURCE"},
				Required: true,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logging.New("info").Fatalf("seed: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	zone, err := timefmt.Load(cfg.Timezone)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	source := c.String("from")
	logger.WithField("source", source).Info("loading fixture")
	fixture, err := seed.Load(ctx, source)
	if err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	users := service.NewUserService(st.Users, cacheClient, zone, logger, cfg.BcryptCost)
	tasks := service.NewTaskService(st.Tasks, zone, logger)

	res, err := seed.Apply(ctx, users, tasks, zone, logger, fixture)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"users_created": res.UsersCreated,
		"users_skipped": res.UsersSkipped,
		"tasks_created": res.TasksCreated,
		"tasks_skipped": res.TasksSkipped,
	}).Info("seed completed")
	return nil
}
