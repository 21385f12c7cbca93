package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/xthexder/go-jack"

	"radio_link/package/arq"
	"radio_link/package/link"
)

func main() {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)

	cfgPath := fs.String("C", "", "YAML config file")
	freq := fs.Float64("f", 462e6, "carrier frequency [Hz]")
	bandwidth := fs.Float64("b", 200e3, "bandwidth [Hz]")
	master := fs.Bool("M", false, "designate node as master")
	slaveFlag := fs.Bool("S", false, "designate node as slave")
	packets := fs.Int("N", 100, "number of packets")
	attempts := fs.Int("A", 500, "[master] max. number of tx attempts")
	payloadLen := fs.Int("n", 200, "[master] payload length (bytes)")
	mod := fs.String("m", "qpsk", "[master] mod. scheme")
	fec0 := fs.String("c", "h74", "[master] fec coding scheme (inner)")
	fec1 := fs.String("k", "none", "[master] fec coding scheme (outer)")
	verbose := fs.Bool("v", false, "set verbose mode")
	quiet := fs.Bool("q", false, "set quiet mode")
	transport := fs.String("t", "jack", "transport: jack, udp or loop")
	capturePath := fs.String("p", "", "write exchanged frames to a pcap file")
	localAddr := fs.String("local", ":4950", "[udp] local bind address")
	remoteAddr := fs.String("remote", "127.0.0.1:4951", "[udp] peer address")
	lossRate := fs.Float64("loss", 0.1, "[loop] simulated frame drop rate")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(parseExitCode(err))
	}

	cfg := arq.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = arq.Load(*cfgPath); err != nil {
			log.WithError(err).Error("could not load config")
			os.Exit(1)
		}
	}

	// explicit flags win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "f":
			cfg.Frequency = *freq
		case "b":
			cfg.Bandwidth = *bandwidth
		case "M":
			cfg.Role = arq.RoleMaster
		case "S":
			cfg.Role = arq.RoleSlave
		case "N":
			cfg.NumPackets = *packets
		case "A":
			cfg.MaxAttempts = *attempts
		case "n":
			cfg.PayloadLen = *payloadLen
		case "m":
			cfg.Modulation = *mod
		case "c":
			cfg.InnerFEC = *fec0
		case "k":
			cfg.OuterFEC = *fec1
		case "v":
			cfg.Verbose = *verbose
		case "q":
			cfg.Verbose = !*quiet
		}
	})
	if *master && *slaveFlag {
		fmt.Fprintln(os.Stderr, "error: node cannot be both master and slave")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if *transport == "loop" {
		runLoop(cfg, *lossRate)
		return
	}

	var trx link.Transceiver
	var err error
	switch *transport {
	case "jack":
		trx, err = openJackModem()
	case "udp":
		trx, err = link.NewUDP(*localAddr, *remoteAddr)
	default:
		err = fmt.Errorf("unknown transport %q", *transport)
	}
	if err != nil {
		log.WithError(err).Error("could not open transport")
		os.Exit(1)
	}

	if *capturePath != "" {
		file, err := os.Create(*capturePath)
		if err != nil {
			log.WithError(err).Error("could not create capture file")
			os.Exit(1)
		}
		defer file.Close()
		if trx, err = link.NewCapture(trx, file); err != nil {
			log.WithError(err).Error("could not start capture")
			os.Exit(1)
		}
	}

	rep := arq.NewReporter(cfg.Verbose, os.Stdout)
	stats, err := arq.NewSession(trx, cfg, rep).Run()
	if stats != nil {
		stats.Report(os.Stdout)
	}
	if err != nil && stats == nil {
		log.WithError(err).Error("session failed")
		os.Exit(1)
	}
}

// parseExitCode maps a flag-parse failure to the process exit status; asking
// for usage is not an error.
func parseExitCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 1
}

// runLoop exercises master and slave in one process over the in-memory lossy
// pair; a self-test that needs no hardware at all.
func runLoop(cfg arq.Config, lossRate float64) {
	a, b := link.NewPair(link.PipeConfig{
		DropRate:    lossRate,
		SelfHearing: true,
	})

	slaveCfg := cfg
	slaveCfg.Role = arq.RoleSlave
	slaveCfg.Verbose = false
	go func() {
		rep := arq.NewReporter(false, os.Stderr)
		if _, err := arq.NewSession(b, slaveCfg, rep).Run(); err != nil {
			log.WithError(err).Warn("slave ended abnormally")
		}
	}()

	masterCfg := cfg
	masterCfg.Role = arq.RoleMaster
	rep := arq.NewReporter(masterCfg.Verbose, os.Stdout)
	stats, err := arq.NewSession(a, masterCfg, rep).Run()
	if err != nil {
		log.WithError(err).Warn("master ended abnormally")
	}
	if stats != nil {
		stats.Report(os.Stdout)
	}
}

// openJackModem wires the acoustic modem into the JACK server: register
// ports, bridge the sample channels in the process callback, connect to the
// system capture/playback ports.
func openJackModem() (*link.Modem, error) {
	client, _ := jack.ClientOpen("RadioLink", jack.NoStartServer)
	if client == nil {
		return nil, fmt.Errorf("could not connect to jack server")
	}

	inPort := client.PortRegister("input", jack.DEFAULT_AUDIO_TYPE, jack.PortIsInput, 0)
	outPort := client.PortRegister("output", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)

	inputChannel := make(chan jack.AudioSample, 1<<16)
	outputChannel := make(chan jack.AudioSample, 1<<20)
	modem := link.NewModem(outputChannel, inputChannel)

	process := func(nframes uint32) int {
		inBuffer := inPort.GetBuffer(nframes)
		outBuffer := outPort.GetBuffer(nframes)

		wrote := false
		for i := range outBuffer {
			select {
			case sample := <-outputChannel:
				outBuffer[i] = sample
				wrote = true
			default:
				outBuffer[i] = 0.0
				if wrote {
					// frame starved mid-buffer
					modem.Underflow()
					wrote = false
				}
			}
		}

		for _, sample := range inBuffer {
			select {
			case inputChannel <- sample:
			default:
				modem.Overflow()
			}
		}
		return 0
	}

	if code := client.SetProcessCallback(process); code != 0 {
		return nil, fmt.Errorf("failed to set process callback: %d", code)
	}
	if code := client.Activate(); code != 0 {
		return nil, fmt.Errorf("failed to activate client: %d", code)
	}

	systemIn := client.GetPortByName("system:capture_1")
	systemOut := client.GetPortByName("system:playback_1")
	client.ConnectPorts(systemIn, inPort)
	client.ConnectPorts(outPort, systemOut)

	return modem, nil
}
