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
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/spf13/viper"
)

// TestCacheTimeoutEnvironmentVariable tests that the tile cache TTL can be set via environment variable
func TestCacheTimeoutEnvironmentVariable(t *testing.T) {
	defer clearConfigEnvVars()

	tests := []struct {
		name     string
		envValue string
		expected int
		active   bool
	}{
		{
			name:     "Caching disabled",
			envValue: "0",
			expected: 0,
			active:   false,
		},
		{
			name:     "One minute",
			envValue: "60",
			expected: 60,
			active:   true,
		},
		{
			name:     "Unset uses default",
			envValue: "",
			expected: 86400,
			active:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnvVars()

			if tt.envValue != "" {
				os.Setenv("RASTERTS_CACHE_TIMEOUT", tt.envValue)
			}

			viper.Reset()
			InitConfig("", false)

			equals(t, tt.expected, Configuration.Cache.Timeout, "Cache.Timeout")
			equals(t, tt.active, Configuration.Cache.IsCacheActive(), "Cache.IsCacheActive")

			clearConfigEnvVars()
		})
	}
}

// TestRenderEnvironmentVariables tests render settings coming from the environment
func TestRenderEnvironmentVariables(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv("RASTERTS_RENDER_NOLEGEND", "greyscale")
	os.Setenv("RASTERTS_RENDER_RESAMPLING", "bilinear")
	os.Setenv("RASTERTS_RASTER_ROOT", "/data/rasters")

	viper.Reset()
	InitConfig("", false)

	equals(t, "greyscale", Configuration.Render.NoLegend, "Render.NoLegend")
	equals(t, "bilinear", Configuration.Render.Resampling, "Render.Resampling")
	equals(t, "/data/rasters", Configuration.Raster.Root, "Raster.Root")
}

// TestConfigFileOverriddenByEnvironment tests that environment variables take precedence over config file
func TestConfigFileOverriddenByEnvironment(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	configContent := `
[Cache]
Timeout = 120
Backend = "redis"

[Raster]
Root = "/srv/file_rasters"
`

	tempDir, err := os.MkdirTemp("", "raster-tileserver_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	configFile := filepath.Join(tempDir, "test_config.toml")
	err = os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatal(err)
	}

	os.Setenv("RASTERTS_CACHE_TIMEOUT", "0")
	os.Setenv("RASTERTS_RASTER_ROOT", "/srv/env_rasters")

	viper.Reset()
	InitConfig(configFile, false)

	equals(t, 0, Configuration.Cache.Timeout, "Cache.Timeout from env")
	equals(t, "/srv/env_rasters", Configuration.Raster.Root, "Raster.Root from env")
	equals(t, "redis", Configuration.Cache.Backend, "Cache.Backend from config")
}

// TestConfigFileOnly tests that config file values are used when no environment variables are set
func TestConfigFileOnly(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	configContent := `
[Server]
HttpPort = 9100
BasePath = "/raster"

[Render]
MaxConcurrent = 2
Overzoom = 0

[Database]
SeedFile = "fixtures.yml"
`

	tempDir, err := os.MkdirTemp("", "raster-tileserver_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	configFile := filepath.Join(tempDir, "test_config.toml")
	err = os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatal(err)
	}

	viper.Reset()
	InitConfig(configFile, false)

	equals(t, 9100, Configuration.Server.HttpPort, "Server.HttpPort from config")
	equals(t, "/raster", Configuration.Server.BasePath, "Server.BasePath from config")
	equals(t, 2, Configuration.Render.MaxConcurrent, "Render.MaxConcurrent from config")
	equals(t, 0, Configuration.Render.Overzoom, "Render.Overzoom from config")
	equals(t, "fixtures.yml", Configuration.Database.SeedFile, "Database.SeedFile from config")
}

// TestDefaultValues tests that default values are used when no config file or environment variables are set
func TestDefaultValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	viper.Reset()
	InitConfig("", false)

	equals(t, 9000, Configuration.Server.HttpPort, "Default HttpPort")
	equals(t, "memory", Configuration.Cache.Backend, "Default Cache.Backend")
	equals(t, "nearest", Configuration.Render.Resampling, "Default Render.Resampling")
	equals(t, "transparent", Configuration.Render.NoLegend, "Default Render.NoLegend")
	equals(t, false, Configuration.Server.Debug, "Default Server.Debug")
}

func TestDebugFlagOverridesConfig(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	viper.Reset()
	InitConfig("", true)

	equals(t, true, Configuration.Server.Debug, "Server.Debug from flag")
}

// Helper function to clear all configuration-related environment variables
func clearConfigEnvVars() {
	envVars := []string{
		"RASTERTS_CACHE_TIMEOUT",
		"RASTERTS_CACHE_BACKEND",
		"RASTERTS_RASTER_ROOT",
		"RASTERTS_RENDER_NOLEGEND",
		"RASTERTS_RENDER_RESAMPLING",
		"RASTERTS_SERVER_HTTPPORT",
		"RASTERTS_SERVER_DEBUG",
	}

	for _, envVar := range envVars {
		os.Unsetenv(envVar)
	}

	// Also clear the global Configuration variable
	Configuration = Config{}
}

// equals fails the test if exp is not equal to act.
func equals(tb testing.TB, exp, act interface{}, msg string) {
	if !reflect.DeepEqual(exp, act) {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("%s:%d: %s - expected: %#v; got: %#v\n", filepath.Base(file), line, msg, exp, act)
		tb.FailNow()
	}
}
