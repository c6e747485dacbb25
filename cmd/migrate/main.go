package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/jhoicas/cobros-sri/internal/infrastructure/migration"
	"github.com/jhoicas/cobros-sri/pkg/config"
	"github.com/jhoicas/cobros-sri/pkg/logger"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	m, err := migration.New(cfg.DB.ConnectionString(), log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar migraciones")
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn().Err(err).Msg("cerrar migrador")
		}
	}()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		n, convErr := intArg(args)
		if convErr != nil {
			log.Fatal().Err(convErr).Msg("uso: migrate steps <n>")
		}
		err = m.Steps(n)
	case "force":
		n, convErr := intArg(args)
		if convErr != nil {
			log.Fatal().Err(convErr).Msg("uso: migrate force <versión>")
		}
		err = m.Force(n)
	case "version":
		version, dirty, vErr := m.Version()
		err = vErr
		if err == nil {
			fmt.Printf("versión %d (dirty=%t)\n", version, dirty)
		}
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("migración fallida")
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("falta el argumento numérico")
	}
	return strconv.Atoi(args[1])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Uso: migrate <comando>

Comandos:
  up            aplica todas las migraciones pendientes
  down          revierte todas las migraciones
  steps <n>     aplica n pasos (negativo = revertir)
  force <v>     fija la versión sin ejecutar (repara estado dirty)
  version       muestra la versión actual`)
}
