// Command fixedposition is a reference position provider plugin. It reports
// the coordinates given in GEOATTEND_FIXED_LATITUDE / GEOATTEND_FIXED_LONGITUDE
// and fails every read when they are unset.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	positionrpc "geoattend/internal/modules/position/adapter/out/rpc"

	"github.com/hashicorp/go-plugin"
)

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *positionrpc.Empty) (*positionrpc.Metadata, error) {
	return &positionrpc.Metadata{Name: "fixedposition", Version: "1.0.0"}, nil
}

func (s *server) Current(_ context.Context, _ *positionrpc.Empty) (*positionrpc.Fix, error) {
	lat, err := envFloat("GEOATTEND_FIXED_LATITUDE")
	if err != nil {
		return nil, err
	}
	lon, err := envFloat("GEOATTEND_FIXED_LONGITUDE")
	if err != nil {
		return nil, err
	}
	accuracy, _ := envFloat("GEOATTEND_FIXED_ACCURACY_M")
	return &positionrpc.Fix{
		Latitude:        lat,
		Longitude:       lon,
		AccuracyM:       accuracy,
		SampledAtUnixMS: time.Now().UnixMilli(),
	}, nil
}

func envFloat(key string) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, fmt.Errorf("%s is not set", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: positionrpc.HandshakeConfig,
		Plugins:         positionrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
