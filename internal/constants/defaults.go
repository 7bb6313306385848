package constants

import "time"

// Configuration defaults applied to zero values.
const (
	DefaultConfigFile   = "configs/config.yaml"
	DefaultLogLevel     = "info"
	DefaultIdentityFile = "data/identity.json"
	DefaultDeviceName   = "pinlog"

	DefaultGPSDevicePort = "/dev/ttyUSB0"
	DefaultGPSBaudRate   = 9600

	DefaultNominatimUserAgent = "pinlog/1.0 (+https://github.com/benmeehan/pin-locator)"
	DefaultGeocodeTimeout     = 10 * time.Second
	DefaultGeocodeAttempts    = 3

	DefaultJSONStoreFile   = "data/pins.json"
	DefaultSQLiteStoreFile = "data/pins.db"

	DefaultMQTTClientID  = "pinlog"
	DefaultMQTTTopic     = "pinlog/events"
	DefaultMQTTQueueSize = 64

	DefaultHeartbeatInterval = time.Minute

	DefaultHTTPAddress         = ":8080"
	DefaultHTTPReadTimeout     = 10 * time.Second
	DefaultHTTPWriteTimeout    = 60 * time.Second
	DefaultHTTPShutdownTimeout = 5 * time.Second

	DefaultBackupBucket = "pinlog-exports"
	DefaultBackupPrefix = "exports/"
)

// Sensor kinds.
const (
	SensorSerial = "serial"
	SensorGoogle = "google"
	SensorHybrid = "hybrid"
)

// Geocoder providers.
const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
)

// Storage drivers.
const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

// Environment variables holding secrets. They override YAML values.
const (
	EnvMapsAPIKey   = "PINLOG_MAPS_API_KEY"
	EnvMQTTUsername = "PINLOG_MQTT_USERNAME"
	EnvMQTTPassword = "PINLOG_MQTT_PASSWORD"
	EnvS3AccessKey  = "PINLOG_S3_ACCESS_KEY"
	EnvS3SecretKey  = "PINLOG_S3_SECRET_KEY"
)
