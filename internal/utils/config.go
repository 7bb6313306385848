package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/benmeehan/pin-locator/internal/constants"
	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/joho/godotenv"
)

// Config represents the structure of the configuration file.
type Config struct {
	LogLevel string `yaml:"log_level"` // zerolog level name

	Device struct {
		IdentityFile string `yaml:"identity_file"` // Path to the device identity file
		Name         string `yaml:"name"`          // Human-readable device name
	} `yaml:"device"`

	Location struct {
		Sensor          string        `yaml:"sensor"`           // serial, google or hybrid
		GPSDevicePort   string        `yaml:"gps_device_port"`  // UNIX port where the GPS receiver is mounted
		GPSBaudRate     int           `yaml:"gps_baud_rate"`    // Baud rate of the GPS receiver
		UERE            float64       `yaml:"uere"`             // Meters per unit of HDOP
		MapsAPIKey      string        `yaml:"maps_api_key"`     // Google Maps API key
		ModemIndex      int           `yaml:"modem_index"`      // ModemManager index for the cell lookup
		TargetAccuracy  float64       `yaml:"target_accuracy"`  // Good-enough accuracy in meters
		Deadline        time.Duration `yaml:"deadline"`         // Continuous phase budget
		MaxStaleness    time.Duration `yaml:"max_staleness"`    // Oldest acceptable continuous reading
		WatchTimeout    time.Duration `yaml:"watch_timeout"`    // Per-update timeout hint
		FallbackTimeout time.Duration `yaml:"fallback_timeout"` // Single-shot fallback budget
		FallbackMaxAge  time.Duration `yaml:"fallback_max_age"` // Oldest acceptable fallback reading
	} `yaml:"location"`

	Geocoder struct {
		Provider     string        `yaml:"provider"`      // nominatim or google
		NominatimURL string        `yaml:"nominatim_url"` // Nominatim instance
		UserAgent    string        `yaml:"user_agent"`    // Sent to Nominatim
		Language     string        `yaml:"language"`      // Preferred address language
		Timeout      time.Duration `yaml:"timeout"`       // Per-request timeout
		MaxAttempts  int           `yaml:"max_attempts"`  // Attempts for transient failures
		Cache        bool          `yaml:"cache"`         // Cache addresses in SQLite
	} `yaml:"geocoder"`

	Storage struct {
		Driver     string `yaml:"driver"`      // json or sqlite
		JSONFile   string `yaml:"json_file"`   // Pin file for the json driver
		SQLiteFile string `yaml:"sqlite_file"` // Database for the sqlite driver and the geocode cache
	} `yaml:"storage"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Publish pin events
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Optional CA bundle
		Username      string `yaml:"username"`       // Optional
		Password      string `yaml:"password"`       // Optional
		Topic         string `yaml:"topic"`          // Base topic; the device ID is appended
		QOS           int    `yaml:"qos"`            // MQTT QoS level
		QueueSize     int    `yaml:"queue_size"`     // Pending events before new ones are dropped

		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Status heartbeat period; negative disables
	} `yaml:"mqtt"`

	HTTP struct {
		Address         string        `yaml:"address"`          // Listen address
		ReadTimeout     time.Duration `yaml:"read_timeout"`     // Server read timeout
		WriteTimeout    time.Duration `yaml:"write_timeout"`    // Server write timeout
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown budget
	} `yaml:"http"`

	Backup struct {
		Enabled   bool   `yaml:"enabled"`    // Upload exports to object storage
		Endpoint  string `yaml:"endpoint"`   // S3-compatible endpoint host:port
		AccessKey string `yaml:"access_key"` // Access key ID
		SecretKey string `yaml:"secret_key"` // Secret access key
		UseSSL    bool   `yaml:"use_ssl"`    // HTTPS to the endpoint
		Region    string `yaml:"region"`     // Bucket region
		Bucket    string `yaml:"bucket"`     // Target bucket
		Prefix    string `yaml:"prefix"`     // Object key prefix
	} `yaml:"backup"`
}

// LoadConfig loads the YAML configuration from filename. A missing file yields the defaults.
// Secrets from the environment (and a .env file, when present) override the file.
func LoadConfig(filename string, fileClient file.FileOperations, getenv func(string) string) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load config %s: %w", filename, err)
	}

	config.ApplyEnv(getenv)
	config.ApplyDefaults()
	return &config, nil
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	override := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Location.MapsAPIKey, constants.EnvMapsAPIKey)
	override(&c.MQTT.Username, constants.EnvMQTTUsername)
	override(&c.MQTT.Password, constants.EnvMQTTPassword)
	override(&c.Backup.AccessKey, constants.EnvS3AccessKey)
	override(&c.Backup.SecretKey, constants.EnvS3SecretKey)
}

// ApplyDefaults fills zero values. Acquisition thresholds left at zero are defaulted by the acquirer.
func (c *Config) ApplyDefaults() {
	setString(&c.LogLevel, constants.DefaultLogLevel)
	setString(&c.Device.IdentityFile, constants.DefaultIdentityFile)
	setString(&c.Device.Name, constants.DefaultDeviceName)

	if c.Location.Sensor == "" {
		c.Location.Sensor = constants.SensorSerial
		if c.Location.MapsAPIKey != "" {
			c.Location.Sensor = constants.SensorHybrid
		}
	}
	setString(&c.Location.GPSDevicePort, constants.DefaultGPSDevicePort)
	setInt(&c.Location.GPSBaudRate, constants.DefaultGPSBaudRate)

	setString(&c.Geocoder.Provider, constants.GeocoderNominatim)
	setString(&c.Geocoder.UserAgent, constants.DefaultNominatimUserAgent)
	setDuration(&c.Geocoder.Timeout, constants.DefaultGeocodeTimeout)
	setInt(&c.Geocoder.MaxAttempts, constants.DefaultGeocodeAttempts)

	setString(&c.Storage.Driver, constants.StorageJSON)
	setString(&c.Storage.JSONFile, constants.DefaultJSONStoreFile)
	setString(&c.Storage.SQLiteFile, constants.DefaultSQLiteStoreFile)

	setString(&c.MQTT.ClientID, constants.DefaultMQTTClientID)
	setString(&c.MQTT.Topic, constants.DefaultMQTTTopic)
	setInt(&c.MQTT.QueueSize, constants.DefaultMQTTQueueSize)
	if c.MQTT.HeartbeatInterval == 0 {
		c.MQTT.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}

	setString(&c.HTTP.Address, constants.DefaultHTTPAddress)
	setDuration(&c.HTTP.ReadTimeout, constants.DefaultHTTPReadTimeout)
	setDuration(&c.HTTP.WriteTimeout, constants.DefaultHTTPWriteTimeout)
	setDuration(&c.HTTP.ShutdownTimeout, constants.DefaultHTTPShutdownTimeout)

	setString(&c.Backup.Bucket, constants.DefaultBackupBucket)
	setString(&c.Backup.Prefix, constants.DefaultBackupPrefix)
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Location.Sensor {
	case constants.SensorSerial:
	case constants.SensorGoogle, constants.SensorHybrid:
		if c.Location.MapsAPIKey == "" {
			errs = append(errs, fmt.Errorf("location sensor %q needs a maps API key (%s)", c.Location.Sensor, constants.EnvMapsAPIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown location sensor %q", c.Location.Sensor))
	}

	switch c.Geocoder.Provider {
	case constants.GeocoderNominatim:
	case constants.GeocoderGoogle:
		if c.Location.MapsAPIKey == "" {
			errs = append(errs, fmt.Errorf("google geocoder needs a maps API key (%s)", constants.EnvMapsAPIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown geocoder provider %q", c.Geocoder.Provider))
	}

	switch c.Storage.Driver {
	case constants.StorageJSON, constants.StorageSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt is enabled but no broker is configured"))
	}
	if c.Backup.Enabled && c.Backup.Endpoint == "" {
		errs = append(errs, errors.New("backup is enabled but no endpoint is configured"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}
