package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/m3rciful/starsbot/core/bootstrap"
	"github.com/m3rciful/starsbot/core/buildinfo"
	corecmd "github.com/m3rciful/starsbot/core/cmd"
	"github.com/m3rciful/starsbot/internal/bot"
	"github.com/m3rciful/starsbot/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (overrides CONFIG_PATH)")
	version := flag.Bool("version", false, "print build information and exit")
	flag.Parse()

	if *version {
		fmt.Fprintln(os.Stdout, "starsbot", buildinfo.String())
		return
	}

	err := corecmd.Run(corecmd.Options{
		ConfigPath:        *configPath,
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			return bot.New(cfg, res.DB)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
