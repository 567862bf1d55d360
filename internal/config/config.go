package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// NodeConfig configures the cortex-node binary. NodeID and LocalName are meant
// to be baked in at build time (ldflags); the env overrides exist for bench
// testing with a single binary.
type NodeConfig struct {
	AppEnv   string
	LogLevel slog.Level

	// NodeID must be unique per device in a deployment (0-254; 255 is reserved).
	NodeID    uint8
	LocalName string

	SamplePeriod time.Duration
	NotifyPeriod time.Duration

	I2CBus string
	LEDPin string
}

// HubConfig configures the cortex-hub binary.
type HubConfig struct {
	AppEnv   string
	LogLevel slog.Level

	BLEAdapter string
	MinRSSI    int

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
}

// LoadNodeFromEnv reads the node configuration from the environment, with
// buildNodeID/buildLocalName (the ldflags-injected values) as defaults.
func LoadNodeFromEnv(buildNodeID, buildLocalName string) (NodeConfig, error) {
	appEnv, level, err := loadCommon()
	if err != nil {
		return NodeConfig{}, err
	}

	nodeIDStr := strings.TrimSpace(os.Getenv("NODE_ID"))
	if nodeIDStr == "" {
		nodeIDStr = buildNodeID
	}
	nodeID, err := strconv.ParseUint(nodeIDStr, 10, 8)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("invalid NODE_ID %q: %w", nodeIDStr, err)
	}
	if nodeID > 254 {
		return NodeConfig{}, fmt.Errorf("NODE_ID %d out of range (0-254)", nodeID)
	}

	localName := strings.TrimSpace(os.Getenv("LOCAL_NAME"))
	if localName == "" {
		localName = buildLocalName
	}
	if localName == "" {
		localName = "CortexNode"
	}

	samplePeriod, err := durationEnv("SAMPLE_PERIOD", 100*time.Millisecond)
	if err != nil {
		return NodeConfig{}, err
	}
	notifyPeriod, err := durationEnv("NOTIFY_PERIOD", 200*time.Millisecond)
	if err != nil {
		return NodeConfig{}, err
	}

	i2cBus := strings.TrimSpace(os.Getenv("I2C_BUS")) // "" means default bus

	ledPin := strings.TrimSpace(os.Getenv("LED_PIN"))
	if ledPin == "" {
		ledPin = "GPIO17"
	}

	return NodeConfig{
		AppEnv:       appEnv,
		LogLevel:     level,
		NodeID:       uint8(nodeID),
		LocalName:    localName,
		SamplePeriod: samplePeriod,
		NotifyPeriod: notifyPeriod,
		I2CBus:       i2cBus,
		LEDPin:       ledPin,
	}, nil
}

// LoadHubFromEnv reads the hub configuration from the environment.
func LoadHubFromEnv() (HubConfig, error) {
	appEnv, level, err := loadCommon()
	if err != nil {
		return HubConfig{}, err
	}

	bleAdapter := strings.TrimSpace(os.Getenv("BLE_ADAPTER"))
	if bleAdapter == "" {
		bleAdapter = "hci0"
	}

	minRSSIStr := strings.TrimSpace(os.Getenv("MIN_RSSI"))
	if minRSSIStr == "" {
		minRSSIStr = "-80"
	}
	minRSSI, err := strconv.Atoi(minRSSIStr)
	if err != nil {
		return HubConfig{}, fmt.Errorf("invalid MIN_RSSI %q: %w", minRSSIStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return HubConfig{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "cortex-hub"
	}

	sqliteDriver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if sqliteDriver == "" {
		sqliteDriver = "sqlite3"
	}
	sqliteDSN := strings.TrimSpace(os.Getenv("DB_DSN"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "cortex.db"
	}

	maxOpenConns, err := intEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return HubConfig{}, err
	}
	maxIdleConns, err := intEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return HubConfig{}, err
	}
	connMaxLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return HubConfig{}, err
	}

	return HubConfig{
		AppEnv:                appEnv,
		LogLevel:              level,
		BLEAdapter:            bleAdapter,
		MinRSSI:               minRSSI,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		SQLiteDriver:          sqliteDriver,
		SQLiteDSN:             sqliteDSN,
		SQLitePath:            sqlitePath,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
	}, nil
}

func loadCommon() (string, slog.Level, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return "", 0, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return "", 0, err
	}
	return appEnv, level, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, d)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}
