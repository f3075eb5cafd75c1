package config

import "strings"

// ServerConfig holds configuration for the HTTP control API.
type ServerConfig struct {
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	RelayConfigFile  string
	LogLevel         string
	LogFile          string
}

// LoadServer reads HTTP API configuration from environment variables.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{
		BindAddr:         getEnvOrDefault("SOAP_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("SOAP_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback: getEnvBoolOrDefault("SOAP_PORT_AUTO_FALLBACK", true),
		RelayConfigFile:  getEnvOrDefault("SOAP_RELAY_CONFIG", ""),
		LogLevel:         strings.ToLower(getEnvOrDefault("SOAP_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("SOAP_SERVER_LOG_FILE", "logs/soapstream_server.log"),
	}
	return cfg, nil
}
