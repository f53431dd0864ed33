// Command solderd runs the soldering robot controller and its operator API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solderbot/internal/api"
	"solderbot/internal/config"
	"solderbot/internal/controller"
	"solderbot/internal/events"
	"solderbot/internal/job"
	"solderbot/internal/logging"
	"solderbot/internal/motion"
	"solderbot/internal/program"
	"solderbot/internal/reactor"
	"solderbot/internal/safety"
	"solderbot/internal/sink"
	"solderbot/internal/thermal"
	"solderbot/internal/version"
	"solderbot/internal/vision"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the YAML configuration")
	writeConfig := flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	switch {
	case *showVersion:
		fmt.Println("solderd", version.String())
		return
	case *listPorts:
		ports, err := motion.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list serial ports: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *writeConfig {
		if err := cfg.Save(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *configPath)
		return
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("solderd stopped", zap.Error(err))
	}
	logger.Info("solderd stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting solderd", zap.String("version", version.String()))

	bus := events.NewBus(events.DefaultQueueSize, logger)
	bus.AddSink(sink.NewLogSink(logger))
	defer addRemoteSinks(ctx, bus, cfg.Sinks, logger)()

	drv, err := openMotion(cfg.Motion, bus, logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	if !cfg.Thermal.Simulate {
		return errors.New("no thermal hardware driver is available; set thermal.simulate")
	}
	var loop *thermal.Loop
	sim := thermal.NewSimulator(func() float64 { return loop.Status().Target })
	loop = thermal.NewLoop(cfg.Thermal.Gains, sim, sim, bus, logger)

	if !cfg.Safety.Simulate {
		return errors.New("no environment sensor driver is available; set safety.simulate")
	}
	env := safety.NewSimulator()
	mon := safety.NewMonitor(cfg.Safety.Monitor(), bus, logger,
		safety.WithSmokeSensor(env), safety.WithProximitySensor(env))
	for _, z := range cfg.Safety.Zones {
		if err := mon.AddZone(z); err != nil {
			return fmt.Errorf("safety zone %s: %w", z.ID, err)
		}
	}

	pipeline, jobOpts, closeVision := openVision(cfg.Vision, logger)
	defer closeVision()
	jobs := job.NewStore(bus, logger, jobOpts...)

	programDir := cfg.Programs.Dir
	if programDir == "" {
		if programDir, err = program.DefaultDir(); err != nil {
			return err
		}
	}
	programs, err := program.NewStore(programDir, bus, logger)
	if err != nil {
		return fmt.Errorf("program store: %w", err)
	}

	ccfg := controller.DefaultConfig()
	ccfg.FeedRate = cfg.Motion.FeedRate
	ccfg.ReadyTolerance = cfg.Thermal.ReadyTolerance
	ccfg.HeatTimeout = cfg.Thermal.HeatTimeout
	ccfg.ThermalPeriod = cfg.Thermal.Period
	ccfg.SafetyPeriod = cfg.Safety.Period
	ctrl := controller.New(ccfg, jobs, loop, drv, mon, bus, logger, controller.WithPrograms(programs))

	sched := reactor.New(logger)
	if err := ctrl.Register(sched); err != nil {
		return err
	}

	exportDir, err := cfg.Jobs.Dir()
	if err != nil {
		return err
	}
	server := api.NewServer(ctrl, exportDir, logger)
	if pipeline != nil {
		server.SetJointAnalyzer(pipeline)
	}
	camera, err := vision.OpenCamera(cfg.Vision.Camera, logger)
	if err != nil {
		logger.Warn("camera unavailable, capture disabled", zap.Error(err))
	} else {
		defer camera.Close()
		if cfg.Vision.Calibration != "" {
			calib, err := vision.LoadCalibration(cfg.Vision.Calibration)
			if err != nil {
				logger.Warn("camera calibration not loaded", zap.String("path", cfg.Vision.Calibration), zap.Error(err))
			} else {
				camera.SetCalibration(calib)
			}
		}
		server.SetCamera(camera)
	}

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := ctrl.Initialize(ctx); err != nil {
		logger.Warn("motion initialization failed, retry via emergency-stop reset", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bus.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.API.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown", zap.Error(err))
		}
		if err := ctrl.Shutdown(shutdownCtx); err != nil {
			logger.Warn("controller shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openMotion(cfg config.MotionConfig, pub events.Publisher, logger *zap.Logger) (motion.Driver, error) {
	if cfg.Simulate {
		logger.Info("using simulated motion controller")
		return motion.NewSimulator(pub), nil
	}
	port, err := motion.OpenSerial(cfg.Port, cfg.Baud)
	if err != nil {
		return nil, err
	}
	logger.Info("motion controller connected", zap.String("port", cfg.Port), zap.Int("baud", cfg.Baud))
	return motion.NewGCodeDriver(port, pub, logger, motion.WithAckTimeout(cfg.AckTimeout)), nil
}

// openVision builds the pipeline and returns it with the job store options
// for fiducial detection and label reading. OCR is optional. The pipeline is
// nil when vision is disabled.
func openVision(cfg config.VisionConfig, logger *zap.Logger) (*vision.Pipeline, []job.Option, func()) {
	params := cfg.PipelineParams()
	pipeline, err := vision.NewPipeline(params, logger)
	if err != nil {
		logger.Warn("vision disabled", zap.Error(err))
		return nil, nil, func() {}
	}
	opts := []job.Option{job.WithDetector(pipeline)}

	labels, err := vision.NewLabelReader(params.LabelRegion)
	if err != nil {
		logger.Warn("board label OCR disabled", zap.Error(err))
		return pipeline, opts, func() {}
	}
	return pipeline, append(opts, job.WithLabeler(labels)), func() { _ = labels.Close() }
}

// addRemoteSinks attaches the Redis and MQTT sinks that are configured. A sink
// whose backend cannot be reached is skipped; events still reach the log.
func addRemoteSinks(ctx context.Context, bus *events.Bus, cfg config.SinksConfig, logger *zap.Logger) func() {
	var closers []func()

	if cfg.Redis.Addr != "" {
		client, err := sink.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis event sink unavailable, continuing without it",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			closers = append(closers, func() { _ = client.Close() })
			bus.AddSink(sink.NewRedisStreamSink(client, cfg.Redis.Stream, cfg.Redis.MaxLen))
			logger.Info("redis event sink enabled", zap.String("addr", cfg.Redis.Addr), zap.String("stream", cfg.Redis.Stream))
		}
	}

	if cfg.MQTT.Broker != "" {
		client, err := sink.ConnectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password)
		if err != nil {
			logger.Warn("mqtt telemetry sink unavailable, continuing without it",
				zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			closers = append(closers, func() { client.Disconnect(250) })
			bus.AddSink(sink.NewMQTTSink(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS))
			logger.Info("mqtt telemetry sink enabled", zap.String("broker", cfg.MQTT.Broker))
		}
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}
