// Package cacheadmin implements the hub cache operator command: statistics,
// manual sweeps, scoped clears, and archive inspection.
package cacheadmin

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/subdogs/hub/internal/platform/config"
	"github.com/subdogs/hub/internal/platform/discovery"
	platformgrpc "github.com/subdogs/hub/internal/platform/grpc"
	"github.com/subdogs/hub/internal/platform/timeouts"
	"github.com/subdogs/hub/internal/services/hubcache/app"
	"github.com/subdogs/hub/internal/services/hubcache/archive"
	"github.com/subdogs/hub/internal/services/hubcache/freshness"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	"github.com/subdogs/hub/internal/services/hubcache/recency"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
	"github.com/subdogs/hub/internal/services/hubcache/storage/sqlite"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultArchiveLimit = 20

// Config holds cache admin command configuration.
type Config struct {
	DBPath      string
	PolicyPath  string
	Timeout     time.Duration
	Stats       bool
	Sweep       bool
	Clear       bool
	ClearAll    bool
	RecentClear string
	ArchiveNews bool
	Health      bool
	HealthAddr  string
	Kind        string
	Scope       string
	Category    string
	Limit       int
	JSONOutput  bool
}

type envConfig struct {
	DBPath     string        `env:"CACHE_DB_PATH" envDefault:"data/hubcache.db"`
	PolicyPath string        `env:"CACHE_POLICY_PATH"`
	Timeout    time.Duration `env:"CACHE_ADMIN_TIMEOUT"`
	Addr       string        `env:"CACHE_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}
	cfg := Config{
		DBPath:     envCfg.DBPath,
		PolicyPath: envCfg.PolicyPath,
		Timeout:    envCfg.Timeout,
		HealthAddr: discovery.OrDefaultGRPCAddr(envCfg.Addr, discovery.ServiceHubcache),
		Limit:      defaultArchiveLimit,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.AdminCommand
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the hub cache sqlite database (default: SUBDOG_HUB_CACHE_DB_PATH or data/hubcache.db)")
	fs.StringVar(&cfg.PolicyPath, "policy-path", cfg.PolicyPath, "optional YAML freshness policy override file")
	fs.BoolVar(&cfg.Stats, "stats", false, "report total, valid, and expired records per kind")
	fs.BoolVar(&cfg.Sweep, "sweep", false, "delete expired records of every kind")
	fs.BoolVar(&cfg.Clear, "clear", false, "delete cache records (narrow with -kind and -scope)")
	fs.BoolVar(&cfg.ClearAll, "clear-all", false, "delete every cache record and recent list entry (narrow with -scope)")
	fs.StringVar(&cfg.RecentClear, "recent-clear", "", "clear a recent list (recent_articles|recent_locations)")
	fs.BoolVar(&cfg.ArchiveNews, "archive-news", false, "list archived news articles newest-first")
	fs.BoolVar(&cfg.Health, "health", false, "report the serving status of a running hubcache daemon")
	fs.StringVar(&cfg.HealthAddr, "addr", cfg.HealthAddr, "hubcache daemon address for -health (default: SUBDOG_HUB_CACHE_ADDR or hubcache:8095)")
	fs.StringVar(&cfg.Kind, "kind", "", "cache kind filter (news|weather|geocoding)")
	fs.StringVar(&cfg.Scope, "scope", "", "scope filter (empty = every scope)")
	fs.StringVar(&cfg.Category, "category", "", "category filter for -archive-news")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "rows fetched for -archive-news before filtering")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	actions := 0
	for _, set := range []bool{cfg.Stats, cfg.Sweep, cfg.Clear, cfg.ClearAll, cfg.RecentClear != "", cfg.ArchiveNews, cfg.Health} {
		if set {
			actions++
		}
	}
	if actions == 0 {
		return errors.New("one of -stats, -sweep, -clear, -clear-all, -recent-clear, -archive-news, or -health is required")
	}
	if actions > 1 {
		return errors.New("only one action flag may be set")
	}
	if cfg.Health {
		if strings.TrimSpace(cfg.HealthAddr) == "" {
			return errors.New("-addr is required for -health")
		}
		return nil
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("-db-path is required")
	}
	if cfg.Kind != "" && !(cfg.Stats || cfg.Clear) {
		return errors.New("-kind applies only to -stats and -clear")
	}
	if cfg.Category != "" && !cfg.ArchiveNews {
		return errors.New("-category applies only to -archive-news")
	}
	if cfg.ArchiveNews && cfg.Limit <= 0 {
		return errors.New("-limit must be > 0")
	}
	return nil
}

// Run executes the cache admin command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Health {
		return runHealth(ctx, cfg, out)
	}

	kind := keys.Kind("")
	if cfg.Kind != "" {
		parsed, err := keys.ParseKind(cfg.Kind)
		if err != nil {
			return err
		}
		kind = parsed
	}

	policies, err := freshness.LoadFile(cfg.PolicyPath, freshness.Defaults())
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open hub cache store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close hub cache store: %v\n", closeErr)
		}
	}()

	options := app.DefaultOptions()
	options.Policies = policies
	options.AsyncArchive = false
	service, err := app.New(store, nil, options)
	if err != nil {
		return err
	}
	defer service.Close()

	switch {
	case cfg.Stats:
		report, err := service.Stats(ctx, kind)
		if err != nil {
			return err
		}
		return writeStats(out, cfg, report, policies)
	case cfg.Sweep:
		report, err := service.Sweep(ctx)
		if err != nil {
			return err
		}
		return writeSweep(out, cfg.JSONOutput, report)
	case cfg.Clear:
		removed, err := service.Clear(ctx, kind, cfg.Scope)
		if err != nil {
			return err
		}
		return writeCount(out, cfg.JSONOutput, "cleared", removed)
	case cfg.ClearAll:
		report, err := service.ClearAll(ctx, cfg.Scope)
		if err != nil {
			return err
		}
		return writeClearAll(out, cfg.JSONOutput, report)
	case cfg.RecentClear != "":
		removed, err := service.ClearRecency(ctx, cfg.RecentClear, cfg.Scope)
		if err != nil {
			return err
		}
		return writeCount(out, cfg.JSONOutput, "cleared "+cfg.RecentClear, removed)
	default:
		rows, err := service.Archive().ListNews(ctx, cfg.Scope, archive.NewsFilter{Category: cfg.Category}, cfg.Limit)
		if err != nil {
			return err
		}
		return writeArchive(out, cfg.JSONOutput, rows, time.Now())
	}
}

type healthOutput struct {
	Addr    string `json:"addr"`
	Server  string `json:"server"`
	Sweeper string `json:"sweeper"`
}

func runHealth(ctx context.Context, cfg Config, out io.Writer) error {
	conn, err := platformgrpc.DialWithHealth(ctx, cfg.HealthAddr, "", cfg.Timeout, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// DialWithHealth only returns once the server reports SERVING.
	server := grpc_health_v1.HealthCheckResponse_SERVING
	sweeper, err := platformgrpc.CheckHealth(ctx, conn, app.SweeperHealthService)
	if err != nil {
		return &platformgrpc.DialError{Stage: platformgrpc.DialStageHealth, Err: err}
	}

	report := healthOutput{Addr: cfg.HealthAddr, Server: server.String(), Sweeper: sweeper.String()}
	if cfg.JSONOutput {
		err = writeJSON(out, report)
	} else {
		_, err = fmt.Fprintf(out, "%s: server %s, sweeper %s\n", report.Addr, report.Server, report.Sweeper)
	}
	if err != nil {
		return err
	}
	if sweeper != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("sweeper is %s", sweeper)
	}
	return nil
}

type policyOutput struct {
	TTL      string `json:"ttl"`
	LeadTime string `json:"lead_time"`
}

type statsOutput struct {
	app.StatsReport
	DBBytes  int64                      `json:"db_bytes"`
	Policies map[keys.Kind]policyOutput `json:"policies"`
}

func writeStats(out io.Writer, cfg Config, report app.StatsReport, policies freshness.Policies) error {
	var size int64
	if info, err := os.Stat(cfg.DBPath); err == nil {
		size = info.Size()
	}
	if cfg.JSONOutput {
		effective := make(map[keys.Kind]policyOutput, len(report.PerKind))
		for kind := range report.PerKind {
			policy := policies[kind]
			effective[kind] = policyOutput{TTL: policy.TTL.String(), LeadTime: policy.LeadTime.String()}
		}
		return writeJSON(out, statsOutput{StatsReport: report, DBBytes: size, Policies: effective})
	}

	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTOTAL\tVALID\tEXPIRED\tTTL\tLEAD")
	for _, kind := range keys.AllKinds() {
		counts, ok := report.PerKind[kind]
		if !ok {
			continue
		}
		policy := policies[kind]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", kind, humanize.Comma(int64(counts.Total)), humanize.Comma(int64(counts.Valid)), humanize.Comma(int64(counts.Expired)), policy.TTL, policy.LeadTime)
	}
	fmt.Fprintf(tw, "all\t%s\t%s\t%s\t\t\n", humanize.Comma(int64(report.Total.Total)), humanize.Comma(int64(report.Total.Valid)), humanize.Comma(int64(report.Total.Expired)))
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "database: %s (%s)\n", cfg.DBPath, humanize.Bytes(uint64(size)))
	return err
}

func writeSweep(out io.Writer, jsonOutput bool, report app.SweepReport) error {
	if jsonOutput {
		return writeJSON(out, report)
	}
	for _, kind := range keys.AllKinds() {
		fmt.Fprintf(out, "%s: %s expired removed\n", kind, humanize.Comma(int64(report.PerKind[kind])))
	}
	_, err := fmt.Fprintf(out, "total: %s\n", humanize.Comma(int64(report.Total)))
	return err
}

func writeCount(out io.Writer, jsonOutput bool, action string, count int) error {
	if jsonOutput {
		return writeJSON(out, map[string]any{"action": action, "count": count})
	}
	_, err := fmt.Fprintf(out, "%s: %s\n", action, humanize.Comma(int64(count)))
	return err
}

func writeClearAll(out io.Writer, jsonOutput bool, report app.ClearReport) error {
	if jsonOutput {
		return writeJSON(out, report)
	}
	for _, kind := range keys.AllKinds() {
		fmt.Fprintf(out, "%s: %s\n", kind, humanize.Comma(int64(report.Cache[kind])))
	}
	for _, list := range []string{recency.RecentArticlesList, recency.RecentLocationsList} {
		fmt.Fprintf(out, "%s: %s\n", list, humanize.Comma(int64(report.Recent[list])))
	}
	_, err := fmt.Fprintf(out, "total: %s\n", humanize.Comma(int64(report.Total)))
	return err
}

type archiveRow struct {
	ArticleID  string    `json:"article_id"`
	Scope      string    `json:"scope,omitempty"`
	Title      string    `json:"title"`
	Categories []string  `json:"categories"`
	ArchivedAt time.Time `json:"archived_at"`
}

func writeArchive(out io.Writer, jsonOutput bool, rows []hubstorage.NewsArchiveRecord, now time.Time) error {
	if jsonOutput {
		payload := make([]archiveRow, 0, len(rows))
		for _, row := range rows {
			payload = append(payload, archiveRow{
				ArticleID:  row.ArticleID,
				Scope:      row.Scope,
				Title:      row.Title,
				Categories: row.Categories,
				ArchivedAt: row.ArchivedAt,
			})
		}
		return writeJSON(out, payload)
	}

	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTICLE\tARCHIVED\tCATEGORIES\tTITLE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ArticleID, humanize.RelTime(row.ArchivedAt, now, "ago", "from now"), strings.Join(row.Categories, ","), row.Title)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
