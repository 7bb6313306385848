package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/internal/service_registry"
	"github.com/benmeehan/pin-locator/internal/services"
	http_utils "github.com/benmeehan/pin-locator/pkg/httpUtils"
	"github.com/benmeehan/pin-locator/pkg/maplinks"
	"github.com/benmeehan/pin-locator/pkg/mqtt"
	"github.com/benmeehan/pin-locator/pkg/s3"
	"github.com/google/uuid"
)

const maxImportBytes = 10 << 20

type command func(c *cli, args []string) error

var commands = map[string]command{
	"serve":  runServe,
	"record": runRecord,
	"list":   runList,
	"show":   runShow,
	"note":   runNote,
	"delete": runDelete,
	"clear":  runClear,
	"export": runExport,
	"import": runImport,
}

// withApp builds the app, runs fn with a context cancelled on SIGINT/SIGTERM and closes the app.
func (c *cli) withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := c.newApp()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func exactArgs(args []string, n int, synopsis string) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %s", errUsage, synopsis)
	}
	return nil
}

func runServe(c *cli, args []string) error {
	if err := exactArgs(args, 0, "serve"); err != nil {
		return err
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		deps := service_registry.Dependencies{
			DeviceInfo: a.deviceInfo,
			Pins:       a.pins,
		}

		if c.config.MQTT.Enabled {
			// Broker client IDs must be unique per connection.
			clientID := c.config.MQTT.ClientID + "-" + uuid.NewString()
			c.logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

			mqttClient := mqtt.NewMqttService(c.fileClient)
			err := mqttClient.Initialize(mqtt.Config{
				Broker:     c.config.MQTT.Broker,
				ClientID:   clientID,
				CACertPath: c.config.MQTT.CACertificate,
				Username:   c.config.MQTT.Username,
				Password:   c.config.MQTT.Password,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize MQTT connection: %w", err)
			}
			defer mqttClient.Disconnect(250)
			deps.MqttClient = mqttClient
		}

		serviceRegistry := service_registry.NewServiceRegistry(c.logger)
		if err := serviceRegistry.RegisterServices(c.config, deps); err != nil {
			return err
		}
		if err := serviceRegistry.StartServices(); err != nil {
			return err
		}
		c.logger.Info().Msg("All services started successfully")

		<-ctx.Done()

		c.logger.Info().Msg("Shutting down gracefully...")
		return serviceRegistry.StopServices()
	})
}

func runRecord(c *cli, args []string) error {
	if err := exactArgs(args, 0, "record"); err != nil {
		return err
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		pin, err := a.pins.Record(ctx)
		if err != nil {
			return err
		}
		printPin(c.stdout, pin)
		return nil
	})
}

func runList(c *cli, args []string) error {
	if err := exactArgs(args, 0, "list"); err != nil {
		return err
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		pins, err := a.pins.List(ctx)
		if err != nil {
			return err
		}
		if len(pins) == 0 {
			fmt.Fprintln(c.stdout, "No pins yet.")
			return nil
		}

		tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tTIME\tADDRESS\tCOUNTRY\tNOTE")
		for _, p := range pins {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Date, p.Time, p.Address, p.CountryCode, oneLine(p.Note))
		}
		return tw.Flush()
	})
}

func runShow(c *cli, args []string) error {
	if err := exactArgs(args, 1, "show <id>"); err != nil {
		return err
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		pin, err := a.pins.Get(ctx, args[0])
		if err != nil {
			return err
		}
		printPin(c.stdout, pin)
		return nil
	})
}

func runNote(c *cli, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: expected note <id> <text>", errUsage)
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		pin, err := a.pins.UpdateNote(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printPin(c.stdout, pin)
		return nil
	})
}

func runDelete(c *cli, args []string) error {
	if err := exactArgs(args, 1, "delete <id>"); err != nil {
		return err
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		if err := a.pins.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Deleted pin %s.\n", args[0])
		return nil
	})
}

func runClear(c *cli, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("yes", false, "confirm deleting every pin")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return fmt.Errorf("%w: expected clear -yes", errUsage)
	}
	if !*yes {
		return errors.New("refusing to delete all pins without -yes")
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		n, err := a.pins.DeleteAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Deleted %d pins.\n", n)
		return nil
	})
}

func runExport(c *cli, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("o", "", "output file (default: export file name in the current directory)")
	backup := fs.Bool("backup", false, "upload the export to the configured object storage")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return fmt.Errorf("%w: expected export [-o file] [-backup]", errUsage)
	}
	if *backup && !c.config.Backup.Enabled {
		return errors.New("backup is not enabled in the configuration")
	}

	return c.withApp(func(ctx context.Context, a *app) error {
		data, name, err := a.pins.Export(ctx)
		if err != nil {
			return err
		}
		path := *out
		if path == "" {
			path = name
		}
		if err := c.fileClient.WriteFileRaw(path, data); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(c.stdout, "Exported pins to %s.\n", path)

		if !*backup {
			return nil
		}
		info, err := c.backup(ctx, a.pins)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Uploaded to %s/%s (%d bytes).\n", info.Bucket, info.Key, info.Size)
		if info.PresignedURL != "" {
			fmt.Fprintf(c.stdout, "Download link (7 days): %s\n", info.PresignedURL)
		}
		return nil
	})
}

func (c *cli) backup(ctx context.Context, exporter services.Exporter) (s3.UploadInfo, error) {
	cfg := c.config.Backup
	storage := s3.NewObjectStorage()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := storage.Connect(connectCtx, s3.Config{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
	}); err != nil {
		return s3.UploadInfo{}, err
	}

	return services.NewBackupService(exporter, storage, cfg.Bucket, cfg.Prefix, c.logger).Backup(ctx)
}

func runImport(c *cli, args []string) error {
	if err := exactArgs(args, 1, "import <file>"); err != nil {
		return err
	}
	return c.withApp(func(ctx context.Context, a *app) error {
		data, err := c.readImport(ctx, args[0])
		if err != nil {
			return err
		}
		n, err := a.pins.Import(ctx, data)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%d locations imported.\n", n)
		return nil
	})
}

// readImport loads an import document from a local file or a backup download link.
func (c *cli) readImport(ctx context.Context, source string) ([]byte, error) {
	if http_utils.IsURL(source) {
		return http_utils.DownloadByPresignedURL(ctx, source, maxImportBytes)
	}
	data, err := c.fileClient.ReadFileRaw(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("import file %s does not exist", source)
		}
		return nil, fmt.Errorf("could not read the file: %w", err)
	}
	return data, nil
}

func printPin(w io.Writer, p models.Pin) {
	fmt.Fprintf(w, "Pin %s\n", p.ID)
	fmt.Fprintf(w, "  Address:   %s\n", p.Address)
	fmt.Fprintf(w, "  City:      %s (%s)\n", p.City, p.CountryCode)
	fmt.Fprintf(w, "  Recorded:  %s %s\n", p.Date, p.Time)
	fmt.Fprintf(w, "  Position:  %.6f, %.6f", p.Latitude, p.Longitude)
	if p.Accuracy > 0 {
		fmt.Fprintf(w, " (±%.0f m, %s)", p.Accuracy, p.Source)
	}
	fmt.Fprintln(w)
	if p.Note != "" {
		fmt.Fprintf(w, "  Note:      %s\n", p.Note)
	}
	fmt.Fprintf(w, "  Navigate:  %s\n", maplinks.NavigateURL(p.Latitude, p.Longitude))
	fmt.Fprintf(w, "  Share:     %s\n", maplinks.ShareText(p.Address, p.Latitude, p.Longitude))
	fmt.Fprintf(w, "  Map image: %s\n", p.MapImageURL)
	if flagURL := maplinks.FlagURL(p.CountryCode); flagURL != "" {
		fmt.Fprintf(w, "  Flag:      %s\n", flagURL)
	}
}

func oneLine(s string) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) > 40 {
		return string(r[:37]) + "..."
	}
	return string(r)
}
