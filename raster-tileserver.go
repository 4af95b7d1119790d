package main

/*
# Running
Usage: ./raster-tileserver [ -test ] [ --database-path /path/to/catalog.db ] [ --seed seed.yaml ] [ --raster-root /srv/rasters ]

Tiles: e.g. http://localhost:9000/tms/landcover/11/552/858.png

# Configuration
DuckDB catalog file path in env var `RASTERTS_DATABASE_PATH`
Example: `export RASTERTS_DATABASE_PATH="/path/to/catalog.db"`

Raster files are resolved against `RASTERTS_RASTER_ROOT`.
A `.env` file in the working directory is read before the environment.

# Logging
Logging to stdout
*/

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tobilg/raster-tileserver/internal/conf"
	"github.com/tobilg/raster-tileserver/internal/data"
	"github.com/tobilg/raster-tileserver/internal/service"

	"github.com/joho/godotenv"
	"github.com/pborman/getopt/v2"
	log "github.com/sirupsen/logrus"
)

var flagTestModeOn bool
var flagDebugOn bool
var flagHelp bool
var flagVersion bool
var flagConfigFilename string
var flagDuckDBPath string
var flagSeedFile string
var flagRasterRoot string

func init() {
	initCommnandOptions()
}

func initCommnandOptions() {
	getopt.FlagLong(&flagHelp, "help", '?', "Show command usage")
	getopt.FlagLong(&flagConfigFilename, "config", 'c', "", "config file name")
	getopt.FlagLong(&flagDebugOn, "debug", 'd', "Set logging level to TRACE")
	getopt.FlagLong(&flagTestModeOn, "test", 't', "Serve from an in-memory catalog")
	getopt.FlagLong(&flagVersion, "version", 'v', "Output the version information")
	getopt.FlagLong(&flagDuckDBPath, "database-path", 0, "", "Path to DuckDB catalog file")
	getopt.FlagLong(&flagSeedFile, "seed", 0, "", "YAML file of legends and layers to import")
	getopt.FlagLong(&flagRasterRoot, "raster-root", 0, "", "Directory of the raster files")
}

func main() {
	getopt.Parse()

	if flagHelp {
		getopt.Usage()
		os.Exit(1)
	}

	if flagVersion {
		fmt.Printf("%s %s\n", conf.AppConfig.Name, conf.AppConfig.Version)
		os.Exit(1)
	}

	log.Infof("----  %s - Version %s ----------\n", conf.AppConfig.Name, conf.AppConfig.Version)

	// A missing .env file is not an error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Error loading .env file: %v", err)
	}

	conf.InitConfig(flagConfigFilename, flagDebugOn)

	// Commandline over-rides config file
	if flagDuckDBPath != "" {
		conf.Configuration.Database.DatabasePath = flagDuckDBPath
	}
	if flagSeedFile != "" {
		conf.Configuration.Database.SeedFile = flagSeedFile
	}
	if flagRasterRoot != "" {
		conf.Configuration.Raster.Root = flagRasterRoot
	}
	if flagDebugOn || conf.Configuration.Server.Debug {
		log.SetLevel(log.TraceLevel)
		log.Debugf("Log level = DEBUG\n")
	}
	conf.DumpConfig()

	//-- Initialize catalog (with DB conn if used)
	var catalog data.Catalog
	if flagTestModeOn {
		log.Info("Running with in-memory catalog")
		catalog = data.CatMemoryInstance()
	} else {
		catalog = data.CatDBInstance()
	}

	if seedFile := conf.Configuration.Database.SeedFile; seedFile != "" {
		if err := importSeed(catalog, seedFile); err != nil {
			log.Fatalf("Error importing seed %s: %v", seedFile, err)
		}
	}

	//-- Start up service
	if err := service.Initialize(catalog); err != nil {
		log.Fatalf("Error initializing service: %v", err)
	}
	service.Serve()
}

func importSeed(catalog data.Catalog, filename string) error {
	seed, err := data.LoadSeed(filename)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := data.ImportSeed(ctx, catalog, seed); err != nil {
		return err
	}
	log.Infof("Imported %d legends and %d layers from %s", len(seed.Legends), len(seed.Layers), filename)
	return nil
}
