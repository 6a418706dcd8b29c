// Package gateway wires an ASTM session to a concrete transport and
// database, and keeps the link alive across disconnects.
package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Link modes and TCP roles.
const (
	ModeSerial  = "serial"
	ModeNetwork = "network"

	RoleServer = "server"
	RoleClient = "client"
)

// Config holds the gateway configuration, loaded from the environment.
type Config struct {
	// MachineName identifies the connected analyzer.
	MachineName string

	// Mode selects the link type: "serial" or "network".
	Mode string

	// Role selects the TCP role in network mode: "server" listens for the
	// analyzer, "client" dials it.
	Role string

	// NetworkAck enables the dialect in which standalone STX and ETX are
	// acknowledged around outbound transfers.
	NetworkAck bool

	// Address and Port form the TCP endpoint in network mode.
	Address string
	Port    int

	// Serial port parameters, used in serial mode.
	SerialDevice string
	BaudRate     int
	DataBits     int
	Parity       string
	StopBits     int

	// DatabaseURL is the PostgreSQL DSN. Empty selects the in-memory
	// store.
	DatabaseURL string
}

// LoadConfig reads the gateway configuration from the environment and
// validates it.
func LoadConfig() (Config, error) {
	cfg := Config{
		MachineName:  getEnv("ASTM_MACHINE_NAME", ""),
		Mode:         strings.ToLower(getEnv("ASTM_MODE", ModeSerial)),
		Role:         strings.ToLower(getEnv("ASTM_ROLE", RoleServer)),
		NetworkAck:   getEnvAsBool("ASTM_NETWORK_ACK", false),
		Address:      getEnv("ASTM_ADDRESS", "0.0.0.0"),
		Port:         getEnvAsInt("ASTM_PORT", 9001),
		SerialDevice: getEnv("ASTM_SERIAL_DEVICE", "/dev/ttyUSB0"),
		BaudRate:     getEnvAsInt("ASTM_BAUD_RATE", 9600),
		DataBits:     getEnvAsInt("ASTM_DATA_BITS", 8),
		Parity:       strings.ToLower(getEnv("ASTM_PARITY", "none")),
		StopBits:     getEnvAsInt("ASTM_STOP_BITS", 1),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	if cfg.MachineName == "" {
		return fmt.Errorf("gateway: ASTM_MACHINE_NAME is required")
	}

	switch cfg.Mode {
	case ModeSerial, ModeNetwork:
	default:
		return fmt.Errorf("gateway: invalid mode %q, want %q or %q", cfg.Mode, ModeSerial, ModeNetwork)
	}

	if cfg.Mode == ModeNetwork {
		switch cfg.Role {
		case RoleServer, RoleClient:
		default:
			return fmt.Errorf("gateway: invalid role %q, want %q or %q", cfg.Role, RoleServer, RoleClient)
		}

		if cfg.Port < 1 || cfg.Port > 65535 {
			return fmt.Errorf("gateway: invalid port %d", cfg.Port)
		}
	}

	return nil
}

// Endpoint returns the "host:port" TCP endpoint in network mode.
func (cfg Config) Endpoint() string {
	return fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}

	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}

	return b
}
