package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"fiberspec/pkg/csc"
	"fiberspec/pkg/sal"
)

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	index := csc.SalIndex(c.Int("index"))
	if !index.Valid() {
		return fmt.Errorf("invalid index %d: want 1 (Blue), 2 (Red) or 3 (Broad)", c.Int("index"))
	}
	simulation := csc.SimulationMode(c.Int("simulate"))

	log.Infof("Fiber Spectrograph CSC %s (%s)", index, index.SerialNumber())

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := csc.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	cfg, err := store.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if host := c.String("broker"); host != "" {
		cfg.MQTT.Host = host
		if err := store.SetConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}
	}

	clientID := fmt.Sprintf("%s-%d", csc.Name, int(index))
	bus, err := sal.NewMQTTBus(clientID, cfg.MQTT, log.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %v", err)
	}
	defer bus.Close()

	component, err := csc.New(index, bus, store, simulation, log.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to create CSC: %v", err)
	}
	if err := component.Start(); err != nil {
		return fmt.Errorf("failed to start CSC: %v", err)
	}
	defer component.Close()

	srv := &http.Server{
		Addr:    c.String("metrics-addr"),
		Handler: promhttp.Handler(),
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		log.Debugf("Metrics server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", srv.Addr, err)
		}
		wg.Done()
	}()

	<-ctx.Done()

	log.Info("Shutting down...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("metrics server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("CSC stopped")
	return nil
}

func main() {
	app := cli.App{
		Name:  "fiberspectrographd",
		Usage: "Fiber Spectrograph CSC",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.IntFlag{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "SAL index: 1 (Blue), 2 (Red) or 3 (Broad)",
				Value:   int(csc.IndexRed),
				EnvVars: []string{"FIBERSPEC_INDEX"},
			},
			&cli.IntFlag{
				Name:    "simulate",
				Aliases: []string{"s"},
				Usage:   "Simulation mode bitmask: 1 spectrograph, 2 S3",
				Value:   0,
				EnvVars: []string{"FIBERSPEC_SIMULATE"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the configuration database",
				Value:   "fiberspec.db",
				EnvVars: []string{"FIBERSPEC_DB"},
			},
			&cli.StringFlag{
				Name:    "broker",
				Aliases: []string{"b"},
				Usage:   "MQTT broker URL, overrides the stored config",
				EnvVars: []string{"FIBERSPEC_BROKER"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Listen address of the Prometheus metrics endpoint",
				Value:   ":9090",
				EnvVars: []string{"FIBERSPEC_METRICS_ADDR"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}

}
