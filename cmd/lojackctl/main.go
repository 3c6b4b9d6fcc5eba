// lojackctl is a diagnostic CLI for the LoJack client library: list
// assets, dump location history, watch a device for fresh fixes, and
// export a track report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"lojack-go/internal/export"
	"lojack-go/lojack"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logrus.New()
	cfg, err := lojack.LoadConfig(os.Getenv("LOJACK_CONFIG"))
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	client := lojack.NewClient(cfg, lojack.WithLogger(log))
	restoreSession(client, log)
	defer saveSession(client, log)

	ctx := context.Background()
	switch os.Args[1] {
	case "devices":
		err = runDevices(ctx, client)
	case "locations":
		err = runLocations(ctx, client, os.Args[2:])
	case "watch":
		err = runWatch(ctx, client, log, os.Args[2:])
	case "export":
		err = runExport(ctx, client, os.Args[2:])
	case "whoami":
		err = runWhoami(ctx, client)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal(os.Args[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: lojackctl <command> [flags]

commands:
  devices                      list assets on the account
  locations <asset-id>         dump location history
  watch <asset-id>             request a fresh fix and poll until it lands
  export <asset-id>            write PDF and XLSX track reports
  whoami                       show the authenticated user

config: yaml file via LOJACK_CONFIG, or LOJACK_USERNAME / LOJACK_PASSWORD
and related env vars.`)
}

func runDevices(ctx context.Context, client *lojack.Client) error {
	assets, err := client.ListDevices(ctx)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		kind := "device"
		detail := ""
		if vehicle, ok := asset.(*lojack.Vehicle); ok {
			kind = "vehicle"
			if vin := vehicle.VIN(); vin != nil {
				detail = " vin=" + *vin
			}
		}
		name := ""
		if n := asset.Name(); n != nil {
			name = *n
		}
		fmt.Printf("%s\t%s\t%s%s\n", asset.ID(), kind, name, detail)
	}
	return nil
}

func runLocations(ctx context.Context, client *lojack.Client, args []string) error {
	fs := flag.NewFlagSet("locations", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum events to fetch")
	skipEmpty := fs.Bool("skip-empty", true, "drop events without coordinates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("locations: asset id required")
	}

	locations, err := client.GetLocations(ctx, fs.Arg(0), lojack.LocationQuery{
		Limit:     *limit,
		SkipEmpty: *skipEmpty,
	})
	if err != nil {
		return err
	}
	for _, loc := range locations {
		printLocation(loc)
	}
	return nil
}

// runWatch reproduces the staleness diagnosis flow: record a baseline
// timestamp, send a locate command, then poll with force until a fix newer
// than the baseline arrives.
func runWatch(ctx context.Context, client *lojack.Client, log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", 15*time.Second, "poll interval")
	timeout := fs.Duration("timeout", 5*time.Minute, "give up after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("watch: asset id required")
	}

	asset, err := client.GetDevice(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	device, ok := asset.(interface {
		RequestFreshLocation(ctx context.Context) (*time.Time, error)
		Location(ctx context.Context, force bool) (*lojack.Location, error)
	})
	if !ok {
		return fmt.Errorf("watch: unexpected asset type")
	}

	baseline, err := device.RequestFreshLocation(ctx)
	if err != nil {
		return err
	}
	if baseline != nil {
		log.WithField("baseline", baseline.Format(time.RFC3339)).Info("locate sent")
	} else {
		log.Info("locate sent, no baseline fix")
	}

	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) {
		time.Sleep(*interval)
		loc, err := device.Location(ctx, true)
		if err != nil {
			return err
		}
		if loc == nil || loc.Timestamp == nil {
			log.Info("no fix yet")
			continue
		}
		if baseline == nil || loc.Timestamp.After(*baseline) {
			fmt.Println("fresh fix:")
			printLocation(*loc)
			return nil
		}
		log.WithField("age", time.Since(*loc.Timestamp).Round(time.Second).String()).Info("fix is stale")
	}
	return fmt.Errorf("watch: no fresh fix within %s", *timeout)
}

func runExport(ctx context.Context, client *lojack.Client, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	limit := fs.Int("limit", 200, "maximum events to include")
	out := fs.String("out", "track", "output file basename")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("export: asset id required")
	}
	assetID := fs.Arg(0)

	asset, err := client.GetDevice(ctx, assetID)
	if err != nil {
		return err
	}
	name := ""
	if n := asset.Name(); n != nil {
		name = *n
	}

	locations, err := client.GetLocations(ctx, assetID, lojack.LocationQuery{
		Limit:     *limit,
		SkipEmpty: true,
	})
	if err != nil {
		return err
	}

	pdf, err := export.BuildTrackPDF(assetID, name, locations)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out+".pdf", pdf, 0o644); err != nil {
		return err
	}
	xlsx, err := export.BuildTrackXLSX(assetID, name, locations)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out+".xlsx", xlsx, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s.pdf and %s.xlsx (%d points)\n", *out, *out, len(locations))
	return nil
}

func runWhoami(ctx context.Context, client *lojack.Client) error {
	info, err := client.GetUserInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("user_id: %s\n", client.UserID())
	if info != nil {
		pretty, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(pretty))
	}
	return nil
}

func printLocation(loc lojack.Location) {
	ts := ""
	if loc.Timestamp != nil {
		ts = loc.Timestamp.Format(time.RFC3339)
	}
	coords := "no fix"
	if loc.HasFix() {
		coords = fmt.Sprintf("%.5f,%.5f", *loc.Latitude, *loc.Longitude)
	}
	extra := ""
	if loc.Accuracy != nil {
		extra += fmt.Sprintf(" acc=%.0fm", *loc.Accuracy)
	}
	if loc.Speed != nil {
		extra += fmt.Sprintf(" speed=%.1f", *loc.Speed)
	}
	if loc.EventType != nil {
		extra += " event=" + *loc.EventType
	}
	if loc.Address != nil {
		extra += " addr=" + *loc.Address
	}
	fmt.Printf("%s\t%s%s\n", ts, coords, extra)
}

// sessionCachePath is where the CLI persists auth artifacts so repeated
// invocations do not re-login.
func sessionCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lojackctl", "session.json")
}

func restoreSession(client *lojack.Client, log *logrus.Logger) {
	path := sessionCachePath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var artifacts lojack.SessionArtifacts
	if err := json.Unmarshal(data, &artifacts); err != nil {
		log.WithError(err).Debug("ignoring corrupt session cache")
		return
	}
	client.ImportAuth(artifacts)
}

func saveSession(client *lojack.Client, log *logrus.Logger) {
	path := sessionCachePath()
	if path == "" {
		return
	}
	artifacts := client.ExportAuth()
	if artifacts == nil {
		return
	}
	data, err := json.Marshal(artifacts)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.WithError(err).Debug("session cache dir")
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.WithError(err).Debug("session cache write")
	}
}
