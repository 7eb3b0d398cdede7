// Package config loads blds's startup configuration: CLI flags for the
// quiet/help/version switches and port/capacity overrides, plus the
// optional INI-style blds.conf file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default values for every setting blds.conf or a flag can override.
const (
	DefaultClientPort         = 2006
	DefaultHTTPPort           = 2007
	DefaultMaxConnections     = 32
	DefaultRecordingLength    = 3600 // seconds
	DefaultReadInterval       = 100  // milliseconds
	DefaultMaxChunkSize       = 10.0 // seconds
	DefaultSaveFilenameFormat = "2006-01-02T15-04-05"
)

// ServerConfig holds every value blds needs at startup: flag overrides and
// blds.conf contents merged together, plus the few values neither layer
// supplies (version, quiet mode).
type ServerConfig struct {
	ClientPort      int
	HTTPPort        int
	MaxConnections  int
	RecordingLength uint32
	ReadInterval    uint32
	MaxChunkSize    float64

	SaveDirectory string
	Quiet         bool
	SourcesFile   string
	ConfigFile    string
}

// DefaultSaveDirectory seeds saveDirectory from the user's home directory,
// falling back to the working directory if that can't be resolved.
func DefaultSaveDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		wd, werr := os.Getwd()
		if werr != nil {
			return "."
		}
		return wd
	}
	return filepath.Join(home, "Desktop")
}

// version is set at build time via -ldflags "-X .../config.version=...".
var version = "dev"

// Parse parses CLI flags and the blds.conf file they reference (or the
// default path), returning the merged ServerConfig. It calls os.Exit for
// --help and --version, matching flag's own -h behavior.
func Parse(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("blds", flag.ContinueOnError)

	quiet := fs.Bool("quiet", false, "redirect logs to a per-process file under $TMPDIR")
	showVersion := fs.Bool("version", false, "print version and exit")
	configFile := fs.String("config", "blds.conf", "path to the INI-style configuration file")
	sourcesFile := fs.String("sources-file", "", "optional YAML file pre-registering a source location/type pair")
	port := fs.Int("port", 0, "TCP port for client connections (overrides blds.conf)")
	httpPort := fs.Int("http-port", 0, "HTTP port for the status endpoint (overrides blds.conf)")
	maxConnections := fs.Int("max-connections", 0, "maximum simultaneous client connections (overrides blds.conf)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: blds [flags]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return nil, err
	}

	if *showVersion {
		fmt.Println("blds version", version)
		os.Exit(0)
	}

	cfg := &ServerConfig{
		ClientPort:      DefaultClientPort,
		HTTPPort:        DefaultHTTPPort,
		MaxConnections:  DefaultMaxConnections,
		RecordingLength: DefaultRecordingLength,
		ReadInterval:    DefaultReadInterval,
		MaxChunkSize:    DefaultMaxChunkSize,
		SaveDirectory:   DefaultSaveDirectory(),
		Quiet:           *quiet,
		SourcesFile:     *sourcesFile,
		ConfigFile:      *configFile,
	}

	if err := loadINIFile(*configFile, cfg); err != nil {
		return nil, err
	}

	if *port != 0 {
		cfg.ClientPort = *port
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if *maxConnections != 0 {
		cfg.MaxConnections = *maxConnections
	}

	return cfg, nil
}

// loadINIFile merges blds.conf's key = value pairs into cfg. A missing file
// leaves cfg at its defaults; an invalid value for a known key is warned
// about on stderr and that key's default is kept.
func loadINIFile(path string, cfg *ServerConfig) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "config: %s:%d: missing '=', ignoring line\n", path, lineNum)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		applyKey(path, lineNum, key, value, cfg)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

func applyKey(path string, lineNum int, key, value string, cfg *ServerConfig) {
	warn := func(err error) {
		fmt.Fprintf(os.Stderr, "config: %s:%d: %s: %v, using default\n", path, lineNum, key, err)
	}

	switch key {
	case "port":
		v, err := strconv.Atoi(value)
		if err != nil {
			warn(err)
			return
		}
		cfg.ClientPort = v

	case "http-port":
		v, err := strconv.Atoi(value)
		if err != nil {
			warn(err)
			return
		}
		cfg.HTTPPort = v

	case "max-connections":
		v, err := strconv.Atoi(value)
		if err != nil {
			warn(err)
			return
		}
		cfg.MaxConnections = v

	case "recording-length":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			warn(err)
			return
		}
		cfg.RecordingLength = uint32(v)

	case "read-interval":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			warn(err)
			return
		}
		cfg.ReadInterval = uint32(v)

	case "max-chunk-size":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			warn(err)
			return
		}
		cfg.MaxChunkSize = v

	default:
		fmt.Fprintf(os.Stderr, "config: %s:%d: unknown key %q, ignoring\n", path, lineNum, key)
	}
}
