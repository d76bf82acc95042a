package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance web server.
The server exposes the REST API for students, classes and bouts, the live
attendance websocket at /ws/attendance/{boutId}, and batch video processing.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// checkFaceService reports whether the face service answers. The server starts either way.
func checkFaceService(ctx context.Context, deps *appDeps) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	model, err := deps.face.Health(ctx)
	if err != nil {
		fmt.Printf("Warning: face service at %s is not reachable: %v\n", deps.cfg.FaceService.URL, err)
		return
	}
	fmt.Printf("Face service ready at %s (model %s)\n", deps.cfg.FaceService.URL, model)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	deps, err := initAppDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := os.MkdirAll(cfg.Storage.StudentImageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create student image directory: %w", err)
	}
	checkFaceService(ctx, deps)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, web.Deps{
		Store:   deps.store,
		Manager: deps.manager,
		Face:    deps.face,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance server on http://%s:%d\n", host, port)
	fmt.Printf("Recognition: metric=%s tolerance=%.2f frame_scale=%.2f sample_interval=%d\n",
		cfg.Recognition.Metric, cfg.Recognition.Tolerance, cfg.Recognition.FrameScale, cfg.Recognition.SampleInterval)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
