// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/recorder"
	"github.com/tlsmate-go/tlsmate/scan"
	"github.com/tlsmate-go/tlsmate/scan/workers"
	"github.com/tlsmate-go/tlsmate/telemetry"
	"github.com/tlsmate-go/tlsmate/tlsconfig"
)

// flags holds the parsed command-line values; newRootCommand binds pflag
// variables directly into it rather than re-reading cmd.Flags() by name.
type flags struct {
	port int

	profile string

	connectTimeout time.Duration
	readTimeout    time.Duration

	caCertFile     string
	clientCertFile string
	clientKeyFile  string

	record string
	replay string

	logLevel   string
	logFile    string
	noProgress bool

	metricsAddr string

	output string
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "tlsmate host",
		Short: "Probe a TLS server's protocol support and known vulnerability classes",
		Long: `tlsmate connects to a TLS server as a purpose-built client, driving each
handshake itself instead of delegating to crypto/tls, so it can offer
malformed or deliberately non-conformant ClientHellos and observe exactly
how the server reacts.

A scan runs a fixed set of workers in priority order: version and cipher
suite enumeration, supported-group enumeration, session resumption,
renegotiation behavior, and a handful of named vulnerability probes
(CCS injection, Heartbleed, and others). Findings accumulate into a single
JSON report printed to stdout.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(args[0], f)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&f.port, "port", 443, "TCP port to connect to")
	fs.StringVar(&f.profile, "profile", "interoperability", "client profile: legacy, interoperability, modern, or tls13only")
	fs.DurationVar(&f.connectTimeout, "connect-timeout", 10*time.Second, "TCP connect timeout")
	fs.DurationVar(&f.readTimeout, "read-timeout", 5*time.Second, "per-read timeout once connected")
	fs.StringVar(&f.caCertFile, "ca", "", "PEM CA bundle path (stored in the config; the scan does not validate the server chain)")
	fs.StringVar(&f.clientCertFile, "cert", "", "PEM client certificate path (stored in the config; no client certificate is sent)")
	fs.StringVar(&f.clientKeyFile, "key", "", "PEM client private key path (stored in the config; no client certificate is sent)")
	fs.StringVar(&f.record, "record", "", "record every connection's trace to this file")
	fs.StringVar(&f.replay, "replay", "", "replay a previously recorded trace from this file instead of dialing out")
	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn, or error")
	fs.StringVar(&f.logFile, "log-file", "", "rotate structured logs to this file in addition to stderr")
	fs.BoolVar(&f.noProgress, "no-progress", false, "disable the terminal progress line")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090) while the scan runs")
	fs.StringVar(&f.output, "output", "-", "write the JSON report here instead of stdout")

	return cmd
}

func runScan(host string, f *flags) error {
	closeLog, err := telemetry.Configure(telemetry.Options{Level: f.logLevel, File: f.logFile})
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	defer closeLog()
	log := telemetry.Log()

	cfgOpts, err := buildConfigOptions(f)
	if err != nil {
		return err
	}
	cfg, err := tlsconfig.New(host, f.port, cfgOpts...)
	if err != nil {
		return fmt.Errorf("building config: %w", err)
	}

	rec := recorder.New()
	if cfg.Replay {
		file, err := os.Open(cfg.RecordingFile)
		if err != nil {
			return fmt.Errorf("opening replay trace: %w", err)
		}
		defer file.Close()
		if err := rec.Deserialize(file); err != nil {
			return fmt.Errorf("loading replay trace: %w", err)
		}
		rec.StartReplaying()
		log.Info("replaying recorded trace", zap.String("file", cfg.RecordingFile))
	} else if cfg.RecordingFile != "" {
		rec.StartRecording()
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	if f.metricsAddr != "" {
		go serveMetrics(f.metricsAddr, reg, log)
	}

	scanID := uuid.NewString()
	ctx := scan.NewContext(scanID, cfg, rec, metrics)
	if cfg.ProgressEnabled {
		ctx.Progress = telemetry.NewProgress(os.Stderr, len(allWorkers))
	}

	if err := scan.Run(ctx, allWorkers); err != nil {
		return fmt.Errorf("scan aborted: %w", err)
	}

	if cfg.RecordingFile != "" && !cfg.Replay {
		file, err := os.Create(cfg.RecordingFile)
		if err != nil {
			return fmt.Errorf("creating recording file: %w", err)
		}
		defer file.Close()
		if err := rec.Serialize(file); err != nil {
			return fmt.Errorf("writing recording: %w", err)
		}
		log.Info("wrote recorded trace", zap.String("file", cfg.RecordingFile))
	}

	return writeReport(ctx, f.output)
}

// allWorkers is the fixed, priority-ordered worker set this build assembles;
// scan.Run re-sorts by Priority regardless, so declaration order here only
// needs to be readable, not correct.
var allWorkers = []scan.Worker{
	workers.ScanStart{},
	workers.Enum{},
	workers.Groups{},
	workers.EncryptThenMAC{},
	workers.ExtendedMasterSecret{},
	workers.Resumption{},
	workers.Renegotiation{},
	workers.CCSInjection{},
	workers.Heartbleed{},
	workers.OCSPStapling{},
	workers.GREASE{},
	workers.VersionInfo{},
}

func buildConfigOptions(f *flags) ([]tlsconfig.Option, error) {
	prof, err := resolveProfile(f.profile)
	if err != nil {
		return nil, err
	}

	opts := []tlsconfig.Option{
		tlsconfig.WithProfile(prof),
		tlsconfig.WithTimeouts(f.connectTimeout, f.readTimeout),
		tlsconfig.WithProgress(!f.noProgress),
	}
	if f.caCertFile != "" {
		opts = append(opts, tlsconfig.WithCACertFile(f.caCertFile))
	}
	if f.clientCertFile != "" || f.clientKeyFile != "" {
		if f.clientCertFile == "" || f.clientKeyFile == "" {
			return nil, fmt.Errorf("--cert and --key must be set together")
		}
		opts = append(opts, tlsconfig.WithClientCertificate(f.clientCertFile, f.clientKeyFile))
	}
	if f.replay != "" {
		opts = append(opts, tlsconfig.WithRecording(f.replay, true))
	} else if f.record != "" {
		opts = append(opts, tlsconfig.WithRecording(f.record, false))
	}
	return opts, nil
}

func resolveProfile(name string) (*clientprofile.ClientProfile, error) {
	switch name {
	case "legacy":
		return clientprofile.Legacy(), nil
	case "interoperability", "":
		return clientprofile.Interoperability(), nil
	case "modern":
		return clientprofile.Modern(), nil
	case "tls13only":
		return clientprofile.TLS13Only(), nil
	default:
		return nil, fmt.Errorf("unknown --profile %q (want legacy, interoperability, modern, or tls13only)", name)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}

func writeReport(ctx *scan.Context, output string) error {
	body, err := json.MarshalIndent(ctx.Profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	body = append(body, '\n')

	if output == "" || output == "-" {
		_, err := os.Stdout.Write(body)
		return err
	}
	return os.WriteFile(output, body, 0o644)
}

