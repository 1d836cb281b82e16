package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ioyurev/vta-collection/pkg/adam"
	"github.com/ioyurev/vta-collection/pkg/config"
	"github.com/ioyurev/vta-collection/pkg/session"
)

func main() {
	var (
		portFlag        = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag      = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag        = flag.Bool("mock", false, "Run without hardware using the synthetic driver")
		simFlag         = flag.Bool("sim", false, "Talk to the simulated ADAM bus instead of a serial port")
		durationFlag    = flag.Duration("duration", time.Minute, "Heating run duration")
		speedFlag       = flag.Float64("speed", -1, "Ramp speed in mV/s (overrides config)")
		sampleFlag      = flag.String("sample", "", "Sample name (overrides config)")
		operatorFlag    = flag.String("operator", "", "Operator name (overrides config)")
		calibrationFlag = flag.String("calibration", "", "Active calibration name (overrides config)")
		outFlag         = flag.String("out", "", "Archive path; a .vtaz path writes a zip, anything else a directory")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *mockFlag {
		cfg.Mock.Enabled = true
	}
	if *speedFlag >= 0 {
		cfg.Heater.DefaultSpeed = *speedFlag
	}
	if *sampleFlag != "" {
		cfg.Measurement.Sample = *sampleFlag
	}
	if *operatorFlag != "" {
		cfg.Measurement.Operator = *operatorFlag
	}
	if *calibrationFlag != "" {
		cfg.Calibration.Active = *calibrationFlag
		cfg.Calibration.Enabled = true
	}

	log := setupLogger(cfg.Log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, reg, log)
	}

	opts := []session.Option{session.WithLogger(log), session.WithRegisterer(reg)}
	if *simFlag {
		opts = append(opts, session.WithTransport(adam.NewSimulator(&cfg.Mock, cfg.Modules.InputAddress, cfg.Modules.OutputAddress)))
	}
	s, err := session.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &run{
		session:  s,
		log:      log,
		duration: *durationFlag,
		out:      *outFlag,
	}
	err = r.execute(ctx)
	if cerr := s.Close(); cerr != nil {
		log.Warnf("close session: %v", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return log
}

func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Infof("metrics on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server: %v", err)
	}
}
