// Command gsdv is the console entrypoint: subnet discovery, a live console
// stream, a logging run, and a standalone sensor simulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/controller"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/discovery"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/logformat"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/simulator"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 0
	}

	switch args[0] {
	case "discover":
		return runDiscover(args[1:])
	case "stream":
		return runStream(args[1:])
	case "log":
		return runLog(args[1:])
	case "simulate-sensor":
		return runSimulateSensor(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "gsdv: unknown subcommand %q\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println(`gsdv: force/torque sensor acquisition tool

Usage:
  gsdv discover [--subnet CIDR] [--timeout SECONDS]
  gsdv stream --ip IP [--seconds N] [--udp-port PORT] [--http-port PORT]
  gsdv log --ip IP --out PATH [--format csv|tsv|excel_compatible] [--seconds N] [--prefix NAME] [--udp-port PORT] [--http-port PORT]
  gsdv simulate-sensor [--udp-port PORT] [--tcp-port PORT] [--http-port PORT] [--rate HZ] [--seed N]`)
}

func runDiscover(args []string) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	subnet := fs.String("subnet", "192.168.1.0/24", "subnet to scan in CIDR notation")
	timeoutSec := fs.Float64("timeout", 0.5, "per-host probe timeout, in seconds")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	sensors, err := discovery.ScanSubnet(context.Background(), *subnet, discovery.Config{
		ProbeTimeout: time.Duration(*timeoutSec * float64(time.Second)),
		OnProgress: func(completed, total int) {
			fmt.Printf("\rscanning %s: %d/%d", *subnet, completed, total)
		},
	})
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gsdv: %s\n", err)
		return 1
	}

	if len(sensors) == 0 {
		fmt.Println("no sensors found")
		return 0
	}
	for _, s := range sensors {
		fmt.Printf("%-16s serial=%-12s firmware=%s\n", s.IP, s.SerialNumber, s.FirmwareVersion)
	}
	return 0
}

func runStream(args []string) int {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	ip := fs.String("ip", "", "sensor IP address (required)")
	seconds := fs.Float64("seconds", 0, "stop after this many seconds (0 = run until interrupted)")
	udpPort := fs.Int("udp-port", 49152, "sensor RDT UDP port")
	httpPort := fs.Int("http-port", 80, "sensor calibration HTTP port")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *ip == "" {
		fmt.Fprintln(os.Stderr, "gsdv: stream requires --ip")
		return 1
	}

	cfg := controller.DefaultConfig(*ip)
	cfg.UDPPort = *udpPort
	cfg.HTTPPort = *httpPort
	cfg.VisualizationCallback = printSampleRow

	return runPipeline(cfg, *seconds, true)
}

func runLog(args []string) int {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	ip := fs.String("ip", "", "sensor IP address (required)")
	out := fs.String("out", "", "output file path (required)")
	format := fs.String("format", "csv", "output format: csv, tsv, or excel_compatible")
	seconds := fs.Float64("seconds", 0, "stop after this many seconds (0 = run until interrupted)")
	prefix := fs.String("prefix", "", "prefix joined onto the --out file name as PREFIX_NAME")
	udpPort := fs.Int("udp-port", 49152, "sensor RDT UDP port")
	httpPort := fs.Int("http-port", 80, "sensor calibration HTTP port")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *ip == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "gsdv: log requires --ip and --out")
		return 1
	}

	fmtVal, err := parseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gsdv: %s\n", err)
		return 1
	}

	cfg := controller.DefaultConfig(*ip)
	cfg.UDPPort = *udpPort
	cfg.HTTPPort = *httpPort
	cfg.OutputPath = outputPathWithPrefix(*out, *prefix)
	cfg.OutputFormat = fmtVal
	cfg.VisualizationCallback = printSampleRow

	return runPipeline(cfg, *seconds, true)
}

func parseFormat(s string) (logformat.Format, error) {
	switch s {
	case "csv":
		return logformat.FormatCSV, nil
	case "tsv":
		return logformat.FormatTSV, nil
	case "excel_compatible":
		return logformat.FormatExcel, nil
	default:
		return 0, fmt.Errorf("unknown format %q (want csv, tsv, or excel_compatible)", s)
	}
}

// outputPathWithPrefix joins an explicit --prefix onto --out's basename,
// leaving --out's directory and extension untouched.
func outputPathWithPrefix(out, prefix string) string {
	if prefix == "" {
		return out
	}
	return filepath.Join(filepath.Dir(out), prefix+"_"+filepath.Base(out))
}

func printSampleRow(s api.Sample) {
	if s.ForceN == nil || s.TorqueNm == nil {
		return
	}
	fmt.Printf("t=%-14d Fx=%8.3f Fy=%8.3f Fz=%8.3f Tx=%8.4f Ty=%8.4f Tz=%8.4f\n",
		s.TMonotonicNs, s.ForceN[0], s.ForceN[1], s.ForceN[2], s.TorqueNm[0], s.TorqueNm[1], s.TorqueNm[2])
}

// runPipeline starts a controller, waits for --seconds or an interrupt
// signal, then stops cleanly.
func runPipeline(cfg controller.Config, seconds float64, announce bool) int {
	c, err := controller.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gsdv: %s\n", err)
		return 1
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.CalibrationTimeout+2*time.Second)
	defer startCancel()
	if err := c.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "gsdv: %s\n", err)
		return 1
	}
	defer c.Stop()

	if announce {
		fmt.Printf("streaming from %s, press Ctrl+C to stop\n", cfg.SensorIP)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seconds > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(seconds * float64(time.Second))):
		}
	} else {
		<-ctx.Done()
	}
	return 0
}

func runSimulateSensor(args []string) int {
	fs := flag.NewFlagSet("simulate-sensor", flag.ContinueOnError)
	udpPort := fs.Int("udp-port", simulator.DefaultUDPPort, "UDP port for RDT streaming")
	tcpPort := fs.Int("tcp-port", simulator.DefaultTCPPort, "TCP port for the command channel")
	httpPort := fs.Int("http-port", simulator.DefaultHTTPPort, "HTTP port for the calibration endpoint")
	rate := fs.Int("rate", simulator.DefaultSampleRateHz, "simulated sample rate, in Hz")
	seed := fs.Int64("seed", 0, "deterministic RNG seed (0 = seed from the current time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := simulator.Config{
		UDPPort:      *udpPort,
		TCPPort:      *tcpPort,
		HTTPPort:     *httpPort,
		SampleRateHz: *rate,
	}
	if *seed != 0 {
		cfg.Seed = *seed
		cfg.HasSeed = true
	}

	sim := simulator.New(cfg)
	if err := sim.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "gsdv: %s\n", err)
		return 1
	}
	defer sim.Stop()

	fmt.Printf("simulator listening: udp=%s tcp=%s http=%s\n", sim.UDPAddr(), sim.TCPAddr(), sim.HTTPAddr())
	fmt.Println("press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return 0
}
