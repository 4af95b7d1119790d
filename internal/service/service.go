package service

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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/cache"
	"github.com/tobilg/raster-tileserver/internal/conf"
	"github.com/tobilg/raster-tileserver/internal/data"
	"github.com/tobilg/raster-tileserver/internal/metrics"
	"github.com/tobilg/raster-tileserver/internal/raster"
	"github.com/tobilg/raster-tileserver/internal/render"
)

const serverTimeoutMessage = "Server timeout"

// Service holds the collaborators shared by the request handlers
type Service struct {
	cache    cache.TileCache
	renderer *render.Renderer
}

var catalogInstance data.Catalog
var serviceInstance *Service
var router *mux.Router
var server *http.Server

// Initialize sets up the raster store, renderer and tile cache
func Initialize(catalog data.Catalog) error {
	catalogInstance = catalog

	store, err := raster.NewStore(conf.Configuration.Raster.Root, conf.Configuration.Raster.CacheSize)
	if err != nil {
		return err
	}
	opts, err := render.OptionsFromConfig(conf.Configuration.Render)
	if err != nil {
		return fmt.Errorf("render configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tileCache, err := cache.New(ctx, conf.Configuration.Cache)
	if err != nil {
		return fmt.Errorf("tile cache: %w", err)
	}

	serviceInstance = &Service{
		cache:    tileCache,
		renderer: render.NewRenderer(catalog, store, opts),
	}
	metrics.ExposeBuildInfo(conf.AppConfig.Version)
	return nil
}

// Serve runs the HTTP server until an interrupt signal arrives
func Serve() {
	confServ := conf.Configuration.Server
	bindAddress := fmt.Sprintf("%v:%v", confServ.HttpHost, confServ.HttpPort)
	log.Infof("%s %s", conf.AppConfig.Name, conf.AppConfig.Version)
	log.Infof("Serving at %v", bindAddress)

	router = initRouter(confServ.BasePath)

	// writeTimeout is slightly longer than the request timeout to allow writing the error response
	timeoutSecRequest := confServ.WriteTimeoutSec
	timeoutSecWrite := timeoutSecRequest + 1

	// ----  Handler chain  --------
	corsOpt := handlers.AllowedOrigins([]string{confServ.CORSOrigins})
	corsHandler := handlers.CORS(corsOpt)(router)
	logHandler := handlers.CombinedLoggingHandler(log.StandardLogger().Writer(), corsHandler)
	timeoutHandler := http.TimeoutHandler(logHandler,
		time.Duration(timeoutSecRequest)*time.Second,
		serverTimeoutMessage)

	server = &http.Server{
		ReadTimeout:  time.Duration(confServ.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(timeoutSecWrite) * time.Second,
		Addr:         bindAddress,
		Handler:      timeoutHandler,
	}

	go func() {
		// ListenAndServe returns http.ErrServerClosed after Shutdown
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// wait here for interrupt signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown: %v", err)
	}
	if err := serviceInstance.cache.Close(); err != nil {
		log.Warnf("Closing tile cache: %v", err)
	}
	if err := catalogInstance.Close(); err != nil {
		log.Warnf("Closing catalog: %v", err)
	}
	log.Info("Server stopped")
}
