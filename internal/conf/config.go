package conf

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Configuration for system
var Configuration Config

func setDefaultConfig() {
	viper.SetDefault("Server.HttpHost", "0.0.0.0")
	viper.SetDefault("Server.HttpPort", 9000)
	viper.SetDefault("Server.UrlBase", "")
	viper.SetDefault("Server.BasePath", "")
	viper.SetDefault("Server.CORSOrigins", "*")
	viper.SetDefault("Server.Debug", false)
	viper.SetDefault("Server.ReadTimeoutSec", 5)
	viper.SetDefault("Server.WriteTimeoutSec", 30)

	viper.SetDefault("Database.DatabasePath", "")
	viper.SetDefault("Database.SeedFile", "")
	viper.SetDefault("Database.MaxOpenConns", 10)
	viper.SetDefault("Database.MaxIdleConns", 4)
	viper.SetDefault("Database.ConnMaxLifetime", 3600)
	viper.SetDefault("Database.ConnMaxIdleTime", 600)

	viper.SetDefault("Raster.Root", "./rasters")
	viper.SetDefault("Raster.CacheSize", 32)

	viper.SetDefault("Render.Resampling", "nearest")
	viper.SetDefault("Render.NoLegend", "transparent")
	viper.SetDefault("Render.Compression", "default")
	viper.SetDefault("Render.MaxConcurrent", 8)
	viper.SetDefault("Render.Overzoom", 2)

	viper.SetDefault("Cache.Enabled", true)
	viper.SetDefault("Cache.Backend", "memory")
	viper.SetDefault("Cache.Timeout", 86400)
	viper.SetDefault("Cache.MaxItems", 10000)
	viper.SetDefault("Cache.MaxMemoryMB", 512)
	viper.SetDefault("Cache.RedisAddr", "127.0.0.1:6379")
	viper.SetDefault("Cache.RedisDB", 0)
	viper.SetDefault("Cache.BrowserCacheMaxAge", 3600)
	viper.SetDefault("Cache.DisableApi", false)
	viper.SetDefault("Cache.ApiKey", "")

	viper.SetDefault("Metadata.Title", "raster-tileserver")
	viper.SetDefault("Metadata.Description", "Colorized raster tiles")

	viper.SetDefault("Metrics.Enabled", true)
	viper.SetDefault("Metrics.Path", "/metrics")
}

// Config for system
type Config struct {
	Server   Server
	Database Database
	Raster   Raster
	Render   Render
	Cache    Cache
	Metadata Metadata
	Metrics  Metrics
}

// Server config
type Server struct {
	HttpHost        string
	HttpPort        int
	UrlBase         string
	BasePath        string
	CORSOrigins     string
	Debug           bool
	ReadTimeoutSec  int
	WriteTimeoutSec int
}

// Database config
type Database struct {
	DatabasePath    string
	SeedFile        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// Raster config
type Raster struct {
	// Root is the directory raster files are resolved against
	Root      string
	CacheSize int
}

// Render config
type Render struct {
	// Resampling is "nearest" or "bilinear"
	Resampling string
	// NoLegend is "transparent" or "greyscale"
	NoLegend string
	// Compression is "default", "speed", "best" or "none"
	Compression   string
	MaxConcurrent int
	// Overzoom is how many levels past the native zoom a layer still renders
	Overzoom int
}

// Cache config
type Cache struct {
	Enabled bool
	// Backend is "memory" or "redis"
	Backend string
	// Timeout is the tile time-to-live in seconds; 0 disables tile caching
	Timeout            int
	MaxItems           int
	MaxMemoryMB        int
	RedisAddr          string
	RedisDB            int
	BrowserCacheMaxAge int
	DisableApi         bool
	ApiKey             string
}

// Metadata config
type Metadata struct {
	Title       string
	Description string
}

// Metrics config
type Metrics struct {
	Enabled bool
	Path    string
}

// IsCacheActive reports whether tiles should be cached at all
func (c Cache) IsCacheActive() bool {
	return c.Enabled && c.Timeout > 0
}

// InitConfig initializes the configuration from the config file
func InitConfig(configFilename string, isDebug bool) {
	// --- defaults
	setDefaultConfig()

	isExplictConfigFile := configFilename != ""
	confFile := AppConfig.Name + ".toml"
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
		confFile = configFilename
	} else {
		viper.SetConfigName(AppConfig.Name)
		viper.SetConfigType("toml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/config")
		viper.AddConfigPath("/etc")
	}

	// Allow environment variables to override configuration
	viper.SetEnvPrefix(AppConfig.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {
		_, isConfigFileNotFound := err.(viper.ConfigFileNotFoundError)
		errrConfRead := fmt.Errorf("fatal error reading config file: %s", err)
		isUseDefaultConfig := isConfigFileNotFound && !isExplictConfigFile
		if isUseDefaultConfig {
			confFile = "DEFAULT" // let user know config is defaulted
			log.Debug(errrConfRead)
		} else {
			log.Fatal(errrConfRead)
		}
	}

	log.Infof("Using config file: %s", confFile)
	if err := viper.Unmarshal(&Configuration); err != nil {
		log.Fatalf("Error decoding configuration: %v", err)
	}
	if isDebug {
		Configuration.Server.Debug = true
	}
}

// DumpConfig prints the effective configuration at debug level
func DumpConfig() {
	log.Debugf("--- Configuration ---")
	log.Debugf("  HttpHost = %s", Configuration.Server.HttpHost)
	log.Debugf("  HttpPort = %d", Configuration.Server.HttpPort)
	log.Debugf("  BasePath = %s", Configuration.Server.BasePath)
	log.Debugf("  UrlBase = %s", Configuration.Server.UrlBase)
	log.Debugf("  CORSOrigins = %s", Configuration.Server.CORSOrigins)
	log.Debugf("  DatabasePath = %s", Configuration.Database.DatabasePath)
	log.Debugf("  SeedFile = %s", Configuration.Database.SeedFile)
	log.Debugf("  RasterRoot = %s", Configuration.Raster.Root)
	log.Debugf("  RasterCacheSize = %d", Configuration.Raster.CacheSize)
	log.Debugf("  Resampling = %s", Configuration.Render.Resampling)
	log.Debugf("  NoLegend = %s", Configuration.Render.NoLegend)
	log.Debugf("  MaxConcurrent = %d", Configuration.Render.MaxConcurrent)
	log.Debugf("  CacheBackend = %s (enabled=%v, timeout=%ds)",
		Configuration.Cache.Backend, Configuration.Cache.Enabled, Configuration.Cache.Timeout)
	log.Debugf("  Metrics = %v (%s)", Configuration.Metrics.Enabled, Configuration.Metrics.Path)
}
