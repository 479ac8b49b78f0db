// Package config loads the hub's command-line and environment
// configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"
)

// Config holds every tunable the hub process needs at startup.
type Config struct {
	BindAddr   string
	MusicDir   string
	BridgesFile string
	PublicBaseURL string
	StationName string

	ChunkFrames     int
	RefillMaxFrames int
	BufferSeconds   float64

	WebDir string
}

// Load parses CLI flags (falling back to environment variables, then
// defaults) and returns the resolved configuration. CLI flags always win
// over environment variables when both are set.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("hub", flag.ContinueOnError)

	bindAddr := fs.StringP("bind", "b", getEnv("HUB_BIND", ":8000"), "address to bind the HTTP API to")
	musicDir := fs.StringP("music-dir", "m", getEnv("HUB_MUSIC_DIR", "./music"), "root directory of the local media library")
	bridgesFile := fs.String("bridges-file", getEnv("HUB_BRIDGES_FILE", "./data/bridges.json"), "path to the configured-bridges JSON file")
	publicBaseURL := fs.String("public-base-url", getEnv("HUB_PUBLIC_BASE_URL", "http://localhost:8000"), "base URL bridges use to fetch /stream")
	stationName := fs.String("station-name", getEnv("HUB_STATION_NAME", "Audio Hub"), "friendly name written to the startup log")
	webDir := fs.String("web-dir", getEnv("HUB_WEB_DIR", "./web/dist"), "static asset directory for the browser renderer")

	chunkFrames := fs.Int("chunk-frames", getEnvAsInt("HUB_CHUNK_FRAMES", 1024), "resampler chunk size in frames")
	refillMaxFrames := fs.Int("refill-max-frames", getEnvAsInt("HUB_REFILL_MAX_FRAMES", 2048), "max frames pulled per output callback refill")
	bufferSeconds := fs.Float64("buffer-seconds", getEnvAsFloat("HUB_BUFFER_SECONDS", 2.0), "queue capacity expressed in seconds of audio")

	help := fs.BoolP("help", "h", false, "display help text")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of hub:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *help {
		fs.Usage()
		os.Exit(0)
	}

	return &Config{
		BindAddr:        *bindAddr,
		MusicDir:        *musicDir,
		BridgesFile:     *bridgesFile,
		PublicBaseURL:   *publicBaseURL,
		StationName:     *stationName,
		WebDir:          *webDir,
		ChunkFrames:     *chunkFrames,
		RefillMaxFrames: *refillMaxFrames,
		BufferSeconds:   *bufferSeconds,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultVal
}
