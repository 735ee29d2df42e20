package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modelroom/backend/internal/config"
	"github.com/modelroom/backend/internal/server"
	"github.com/modelroom/backend/internal/signaling"
)

var cfg = config.NewDefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "modelroom-server",
	Short: "Signaling and room-state server for collaborative 3D scenes",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringP("listen", "l", cfg.ListenAddr, "Listen address for the HTTP/websocket server")
	rootCmd.Flags().String("log", cfg.LogLevel, "Log level (debug, info, warn, error, fatal, panic)")
	rootCmd.Flags().Int64("max-message-size", cfg.MaxMessageSize, "Maximum inbound websocket frame size in bytes")
	rootCmd.Flags().Duration("pong-wait", cfg.PongWait, "Keep-alive idle timeout")
	rootCmd.Flags().Duration("ping-period", cfg.PingPeriod, "Keep-alive probe interval")
	rootCmd.Flags().String("ice-address", cfg.ICEAddress, "STUN/TURN server advertised to clients")
	rootCmd.Flags().String("ice-username", cfg.ICEUsername, "ICE server username")
	rootCmd.Flags().String("ice-password", cfg.ICEPassword, "ICE server password")
}

// bindConfig layers configuration: defaults, then a local .env file, then
// MODELROOM_* environment variables, then command-line flags.
func bindConfig(cmd *cobra.Command) error {
	godotenv.Load()

	viper.SetEnvPrefix("MODELROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	return viper.Unmarshal(cfg)
}

func run() error {
	logger := cfg.Logger("main")

	hub := signaling.NewHub(signaling.HubConfig{
		MaxMessageSize: cfg.MaxMessageSize,
		PongWait:       cfg.PongWait,
		PingPeriod:     cfg.PingPeriod,
	}, cfg.Logger("hub"))
	go hub.Run()
	defer hub.Stop()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewRouter(hub, cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"listen": cfg.ListenAddr,
			"log":    cfg.LogLevel,
		}).Info("Starting signaling server")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.WithField("signal", sig).Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
