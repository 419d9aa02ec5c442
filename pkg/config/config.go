package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jitsi-contrib/focus/pkg/conference"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the focus process's top-level configuration.
type Config struct {
	// XMPP configuration (domain, MUC domain, focus nickname).
	XMPP signaling.Config `yaml:"xmpp"`
	// Conference (per-room) defaults, echoed into every new Config unless a
	// room config form overrides them.
	Conference ConferenceDefaults `yaml:"conference"`
	// Starting from which level to log stuff.
	LogLevel string `yaml:"log"`
}

// ConferenceDefaults mirrors conference.Config's YAML-serializable fields
// (conference.Config itself carries function values for the signaling-delay
// curve, so it isn't unmarshaled directly).
type ConferenceDefaults struct {
	MinParticipants       int  `yaml:"minParticipants"`
	EnableAutoOwner       bool `yaml:"enableAutoOwner"`
	RestartMinIntervalMs  int  `yaml:"restartMinIntervalMs"`
	RestartMaxBurst       int  `yaml:"restartMaxBurst"`
	UseSsrcRewriting      bool `yaml:"useSsrcRewriting"`
	UseJSONEncodedSources bool `yaml:"useJsonEncodedSources"`
	StripSimulcast        bool `yaml:"stripSimulcast"`
	BridgeVersionPinning  bool `yaml:"bridgeVersionPinning"`
}

// ToConferenceConfig builds a conference.Config from the loaded defaults,
// filling in the signaling-delay curve and per-room overrides supplied by
// the MUC room-config form (spec.md §6 "Room-config echoed from MUC form").
func (d ConferenceDefaults) ToConferenceConfig(meetingID string, isBreakoutRoom bool, breakoutMainRoom string) conference.Config {
	cfg := conference.DefaultConfig()
	if d.MinParticipants > 0 {
		cfg.MinParticipants = d.MinParticipants
	}
	cfg.EnableAutoOwner = d.EnableAutoOwner
	if d.RestartMinIntervalMs > 0 {
		cfg.RestartMinInterval = time.Duration(d.RestartMinIntervalMs) * time.Millisecond
	}
	if d.RestartMaxBurst > 0 {
		cfg.RestartMaxBurst = d.RestartMaxBurst
	}
	cfg.UseSsrcRewriting = d.UseSsrcRewriting
	cfg.UseJSONEncodedSources = d.UseJSONEncodedSources
	cfg.StripSimulcast = d.StripSimulcast
	cfg.BridgeVersionPinning = d.BridgeVersionPinning
	cfg.MeetingID = meetingID
	cfg.IsBreakoutRoom = isBreakoutRoom
	cfg.BreakoutMainRoom = breakoutMainRoom
	return cfg
}

// ErrNoConfigEnvVar is returned when the CONFIG environment variable is not set.
var ErrNoConfigEnvVar = errors.New("environment variable not set or invalid")

// LoadConfig tries to load a config from the CONFIG environment variable.
// If the environment variable is not set, it falls back to the provided
// path to a YAML config file. Returns an error if the config could not be
// loaded.
func LoadConfig(path string) (*Config, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoConfigEnvVar) {
			return nil, err
		}
		return LoadConfigFromPath(path)
	}
	return config, nil
}

// LoadConfigFromEnv tries to load the config from the CONFIG environment
// variable.
func LoadConfigFromEnv() (*Config, error) {
	configEnv := os.Getenv("CONFIG")
	if configEnv == "" {
		return nil, ErrNoConfigEnvVar
	}
	return LoadConfigFromString(configEnv)
}

// LoadConfigFromPath tries to load a config from the provided path.
func LoadConfigFromPath(path string) (*Config, error) {
	logrus.WithField("path", path).Info("loading config")

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return LoadConfigFromString(string(file))
}

// LoadConfigFromString loads config from the provided string. Returns an
// error if the string is not valid YAML or required fields are missing.
func LoadConfigFromString(configString string) (*Config, error) {
	logrus.Info("loading config from string")

	var config Config
	if err := yaml.Unmarshal([]byte(configString), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML file: %w", err)
	}

	if config.XMPP.Domain == "" || config.XMPP.MucDomain == "" || config.XMPP.FocusNickname == "" {
		return nil, errors.New("invalid config values")
	}
	if config.Conference.MinParticipants < 0 {
		return nil, errors.New("invalid config values")
	}

	return &config, nil
}
