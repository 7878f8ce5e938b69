package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/op/go-logging"
	"github.com/spf13/viper"

	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/util"
)

// Config holds everything the connector, collector and monitor read
// from the two config files: startup.<env>.cfg (hosts, ports,
// beamline presets, paths, backing services) and
// processing.<env>.cfg (spotfinding parameters, header key names,
// output formatting). The split mirrors the beamline deployment,
// where operators edit processing settings without touching
// connection wiring.
type Config struct {
	ConfigName string

	// Splitter connection.
	Host string
	Port string

	// Beamline presets, name -> "host:port".
	Beamlines map[string]Beamline

	// Downstream UI / DHS endpoint.
	UIHost string
	UIPort string

	LogDir    string
	LogLevel  logging.Level
	RecordDir string

	RedisURL       string
	RedisPassword  string
	RedisDefaultDB int

	ArchiveEndpoint string
	ArchiveKey      string
	ArchiveSecret   string
	ArchiveBucket   string
	ArchiveUseSSL   bool

	Processing ProcessingConfig
}

// Beamline is one preset from the [beamlines] section.
type Beamline struct {
	Name string
	Host string
	Port string
}

// ProcessingConfig carries the spotfinding and output settings.
type ProcessingConfig struct {
	// HType is the run-header htype expected on this stream.
	HType string

	// HeaderKeys remaps the custom Eiger header keys.
	HeaderKeys data.HeaderKeys

	// SignalSigma is the threshold above background, in sigmas.
	SignalSigma float64
	// MinSpotArea and MaxSpotArea bound accepted spot sizes in
	// pixels.
	MinSpotArea int
	MaxSpotArea int

	// Geometry defaults; the run header overrides them when it
	// carries detector detail.
	Geometry data.Geometry

	// MinBragg is the spot-count cutoff between hits and misses.
	MinBragg int

	// ResultFields orders the fields of the result string.
	ResultFields []string
	// Reporting is the default UI message tag.
	Reporting string
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// NewConfig reads startup and processing config based on the env
// vars INTERCEPTOR_CONFIG_DIR and INTERCEPTOR_ENV.
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()

	startup := readConfigFile(configDir, "startup", envName)
	processing := readConfigFile(configDir, "processing", envName)

	level, ok := logLevels[strings.ToUpper(startup.GetString("logging.level"))]
	if !ok {
		level = logging.INFO
	}

	config := &Config{
		ConfigName:      envName,
		Host:            startup.GetString("connection.host"),
		Port:            startup.GetString("connection.port"),
		Beamlines:       parseBeamlines(startup.GetStringMapString("beamlines")),
		UIHost:          startup.GetString("ui.host"),
		UIPort:          startup.GetString("ui.port"),
		LogDir:          startup.GetString("paths.log_dir"),
		LogLevel:        level,
		RecordDir:       startup.GetString("paths.record_dir"),
		RedisURL:        startup.GetString("redis.url"),
		RedisPassword:   startup.GetString("redis.password"),
		RedisDefaultDB:  startup.GetInt("redis.default_db"),
		ArchiveEndpoint: startup.GetString("archive.endpoint"),
		ArchiveKey:      startup.GetString("archive.key"),
		ArchiveSecret:   startup.GetString("archive.secret"),
		ArchiveBucket:   startup.GetString("archive.bucket"),
		ArchiveUseSSL:   startup.GetBool("archive.use_ssl"),
		Processing:      loadProcessing(processing),
	}
	return config
}

func loadProcessing(v *viper.Viper) ProcessingConfig {
	p := ProcessingConfig{
		HType: v.GetString("stream.htype"),
		HeaderKeys: data.HeaderKeys{
			MasterFile: v.GetString("header_keys.master_file"),
			Mapping:    v.GetString("header_keys.mapping"),
			Reporting:  v.GetString("header_keys.reporting"),
		},
		SignalSigma: v.GetFloat64("spotfinding.signal_sigma"),
		MinSpotArea: v.GetInt("spotfinding.min_spot_area"),
		MaxSpotArea: v.GetInt("spotfinding.max_spot_area"),
		Geometry: data.Geometry{
			DistanceMM:  v.GetFloat64("geometry.distance_mm"),
			Wavelength:  v.GetFloat64("geometry.wavelength_ang"),
			PixelSizeMM: v.GetFloat64("geometry.pixel_size_mm"),
			BeamCenterX: v.GetFloat64("geometry.beam_center_x"),
			BeamCenterY: v.GetFloat64("geometry.beam_center_y"),
			Overload:    v.GetFloat64("spotfinding.overload"),
		},
		MinBragg:     v.GetInt("output.min_bragg"),
		ResultFields: strings.Fields(v.GetString("output.result_format")),
		Reporting:    v.GetString("output.reporting"),
	}
	p.applyDefaults()
	return p
}

func (p *ProcessingConfig) applyDefaults() {
	if p.HType == "" {
		p.HType = "dheader-1.0"
	}
	defKeys := data.DefaultHeaderKeys()
	if p.HeaderKeys.MasterFile == "" {
		p.HeaderKeys.MasterFile = defKeys.MasterFile
	}
	if p.HeaderKeys.Mapping == "" {
		p.HeaderKeys.Mapping = defKeys.Mapping
	}
	if p.HeaderKeys.Reporting == "" {
		p.HeaderKeys.Reporting = defKeys.Reporting
	}
	if p.SignalSigma == 0 {
		p.SignalSigma = 3.0
	}
	if p.MinSpotArea == 0 {
		p.MinSpotArea = 2
	}
	if p.MaxSpotArea == 0 {
		p.MaxSpotArea = 1000
	}
	if p.Geometry.Overload == 0 {
		p.Geometry.Overload = 65535
	}
	if p.MinBragg == 0 {
		p.MinBragg = 10
	}
}

func readConfigFile(configDir, prefix, envName string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, fmt.Sprintf("%s.%s.cfg", prefix, envName)))
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error reading %s config: %s", prefix, err))
	}
	return v
}

func parseBeamlines(raw map[string]string) map[string]Beamline {
	beamlines := make(map[string]Beamline, len(raw))
	for name, hostport := range raw {
		host := hostport
		port := ""
		if i := strings.LastIndex(hostport, ":"); i >= 0 {
			host = hostport[:i]
			port = hostport[i+1:]
		}
		// viper lowercases map keys; keep the preset name as the
		// operator wrote it by storing the canonical form too.
		beamlines[strings.ToUpper(name)] = Beamline{
			Name: strings.ToUpper(name),
			Host: host,
			Port: port,
		}
	}
	return beamlines
}

// Beamline resolves a preset by name, case-insensitively.
func (c *Config) Beamline(name string) (Beamline, bool) {
	bl, ok := c.Beamlines[strings.ToUpper(name)]
	return bl, ok
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("INTERCEPTOR_CONFIG_DIR")
	envName := getRequiredEnvVar("INTERCEPTOR_ENV")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.LogDir = expandPath(c.LogDir)
	c.RecordDir = expandPath(c.RecordDir)
}

func expandPath(dirName string) string {
	if dirName == "" {
		return dirName
	}
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

func (c *Config) makeDirs() {
	for _, dir := range []string{c.LogDir, c.RecordDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			panic(err)
		}
	}
}
