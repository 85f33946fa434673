package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jscharber/privacyguard/pkg/config"
	"github.com/jscharber/privacyguard/pkg/logger"
	"github.com/jscharber/privacyguard/pkg/pii"
	"github.com/jscharber/privacyguard/pkg/pii/classifier"
	"github.com/jscharber/privacyguard/pkg/pii/policy"
	"github.com/jscharber/privacyguard/pkg/pii/protection"
	"github.com/jscharber/privacyguard/pkg/pii/retention"
)

func main() {
	var (
		configFile     = flag.String("config", "", "Path to configuration file")
		generateConfig = flag.String("generate-config", "", "Generate example configuration file at specified path")
		validateConfig = flag.Bool("validate-config", false, "Validate configuration and exit")
		inputFile      = flag.String("input", "-", "JSON record to scan (path or - for stdin)")
		domain         = flag.String("domain", "", "Policy domain for the scan")
		tenant         = flag.String("tenant", "", "Tenant identifier for the scan")
		version        = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Println("privacyguard v1.0.0")
		os.Exit(0)
	}

	if *generateConfig != "" {
		if err := config.GetDefaultConfig().WriteExample(*generateConfig); err != nil {
			log.Fatalf("Failed to generate config file: %v", err)
		}
		fmt.Printf("Example configuration file generated at: %s\n", *generateConfig)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *validateConfig {
		fmt.Println("Configuration is valid.")
		os.Exit(0)
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLogLevel(cfg.Logging.Level),
		Format:  parseLogFormat(cfg.Logging.Format),
		Output:  os.Stderr,
		Service: "privacyguard",
		Version: "1.0.0",
	})

	registry := policy.NewRegistry()
	if cfg.Policies.Dir != "" {
		loaded, err := registerBundles(registry, cfg.Policies.Dir)
		if err != nil {
			log.Fatalf("Failed to load policy bundles: %v", err)
		}
		appLogger.Info("loaded %d policy bundles from %s", loaded, cfg.Policies.Dir)
	}

	service := pii.NewServiceWithComponents(
		classifier.New(registry),
		protection.NewEngine(&protection.Config{
			KeyProvider:   protection.NewEnvKeyProvider(""),
			DefaultKeyID:  cfg.Service.KeyID,
			PseudonymSalt: cfg.Service.PseudonymSalt,
		}),
		retention.NewCalculator(),
		&pii.ServiceConfig{
			DefaultDomain:  cfg.Service.DefaultDomain,
			MaxRecordBytes: cfg.Service.MaxRecordBytes,
		},
		appLogger,
	)

	record, err := readRecord(*inputFile, cfg.Service.MaxRecordBytes)
	if err != nil {
		log.Fatalf("Failed to read input record: %v", err)
	}

	response, err := service.ScanAndProtect(context.Background(), &pii.ScanRequest{
		TenantID: *tenant,
		Domain:   *domain,
		Actor:    "privacyguard-cli",
		Record:   record,
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		log.Fatalf("Failed to encode response: %v", err)
	}
}

func parseLogFormat(format string) logger.LogFormat {
	if strings.EqualFold(format, "text") {
		return logger.TextFormat
	}
	return logger.JSONFormat
}

// registerBundles loads every policy bundle file in dir into the registry.
func registerBundles(registry *policy.Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read policy directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}

		bundle, err := policy.LoadBundle(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, err
		}
		registry.Register(bundle)
		loaded++
	}
	return loaded, nil
}

func readRecord(inputPath string, maxBytes int) (map[string]any, error) {
	var reader io.Reader
	if inputPath == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(inputPath)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		reader = file
	}

	data, err := io.ReadAll(io.LimitReader(reader, int64(maxBytes)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBytes {
		return nil, fmt.Errorf("record exceeds maximum size of %d bytes", maxBytes)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("invalid JSON record: %w", err)
	}
	return record, nil
}
