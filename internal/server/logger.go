package server

import "go.uber.org/zap"

// NewLogger returns a production JSON logger for env "prod" or "production"
// and a human-readable development logger at debug level otherwise.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "prod" || env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
