// Invigild is the invigilation engine daemon. It serves the proctor
// dashboard, ingests candidate video and audio over the session socket,
// runs the detection analyzers, and ships emitted events to a collector.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/invigilab/go-invigil/internal/config"
	"github.com/invigilab/go-invigil/internal/log"
	"github.com/invigilab/go-invigil/pkg/detect"
	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/monitor"
	"github.com/invigilab/go-invigil/pkg/protocol"
	"github.com/invigilab/go-invigil/pkg/report"
	"github.com/invigilab/go-invigil/pkg/web"
)

func main() {
	// A missing .env is fine; production configures through real env vars.
	_ = godotenv.Load()

	mockDetect := flag.Bool("mock-detect", false,
		"Use scripted detectors instead of ONNX models (development only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel, cfg.LogFile)

	if err := run(cfg, *mockDetect); err != nil {
		log.Error("engine stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, mockDetect bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	faces, objects, err := buildDetectors(cfg, mockDetect)
	if err != nil {
		return fmt.Errorf("failed to build detectors: %w", err)
	}
	defer faces.Close()
	defer objects.Close()

	mon := monitor.New(cfg.MonitorConfig())

	var collector *report.Client
	if cfg.CollectorURL != "" {
		collector = report.NewClient(cfg.ReportConfig())
		collector.Start(ctx)
		defer collector.Close()
	}

	srv := web.NewServer(cfg.WebConfig(), mon, analyzer(faces, objects))
	mon.OnEvent(func(e event.Event) {
		srv.Publish(e)
		if collector != nil {
			collector.Report(e)
		}
	})

	srv.StartAsync()
	log.Info("invigilation engine ready", "addr", cfg.Addr)

	<-ctx.Done()
	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Warn("dashboard shutdown failed", "error", err)
	}
	mon.Cleanup()
	return nil
}

// buildDetectors loads the ONNX model backends, or scripted mocks when
// running without models on disk.
func buildDetectors(cfg *config.Config, mock bool) (detect.FaceDetector, detect.ObjectDetector, error) {
	if mock {
		log.Warn("running with mock detectors; no real analysis will happen")
		return detect.NewMockFaceDetector(), detect.NewMockObjectDetector(), nil
	}

	faces, err := detect.NewYuNet(cfg.FaceDetectConfig())
	if err != nil {
		return nil, nil, err
	}
	objects, err := detect.NewYOLO(cfg.ObjectDetectConfig())
	if err != nil {
		faces.Close()
		return nil, nil, err
	}
	return faces, objects, nil
}

// analyzer adapts the detector backends to the session-feed callback.
func analyzer(faces detect.FaceDetector, objects detect.ObjectDetector) web.AnalyzeFrame {
	return func(fd protocol.FrameData) (detect.FrameResult, []detect.Object, error) {
		payload, err := fd.DecodePayload()
		if err != nil {
			return detect.FrameResult{}, nil, err
		}
		frame := detect.Frame{JPEG: payload, Width: fd.Width, Height: fd.Height}

		result, err := faces.Detect(frame)
		if err != nil {
			// A failed frame counts as zero detections, not a fatal error.
			return detect.FrameResult{}, nil, err
		}

		found, err := objects.Detect(frame)
		if err != nil {
			log.Debug("object detection failed", "error", err)
			found = nil
		}
		return result, found, nil
	}
}
