package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/agencybot/internal/browser"
	"github.com/example/agencybot/internal/config"
	"github.com/example/agencybot/internal/driver"
	"github.com/example/agencybot/internal/logging"
	"github.com/example/agencybot/internal/models"
	"github.com/example/agencybot/internal/notify"
	"github.com/example/agencybot/internal/orchestrator"
	"github.com/example/agencybot/internal/resolver"
	"github.com/example/agencybot/internal/store"
)

func main() {
	ctx := context.Background()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to config file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `agencybot - model agency application automation

Usage:
  agencybot [--config config.yaml] <command> [options]

Commands:
  seed --file agencies.yaml       Load or update the agency directory
  agencies                        List active agencies in the directory
  resolve [--agency ID | --url U] Resolve an agency's application page URL
  submit --user U --agencies 1,2,3 --profile profile.yaml
                                  Apply the profile to each agency (1 credit each)
  credits --user U [--add N]      Show or top up a user's credit balance
  jobs --user U                   List the user's submission jobs

Examples:
  agencybot seed --file agencies.yaml
  agencybot submit --user u-123 --agencies 4,7 --profile profile.yaml
`)
	}

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging.Level)
	log.Info("agencybot starting", "version", "0.1.0")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Error("db migration failed", "err", err)
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	log.Info("executing command", "command", cmd)
	switch cmd {
	case "seed":
		err = runSeed(ctx, cfg, st)
	case "agencies":
		err = runAgencies(ctx, st)
	case "resolve":
		err = runResolve(ctx, cfg, st)
	case "submit":
		err = runSubmit(ctx, cfg, st)
	case "credits":
		err = runCredits(ctx, cfg, st)
	case "jobs":
		err = runJobs(ctx, st)
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Error("command failed", "cmd", cmd, "err", err)
		fmt.Fprintf(os.Stderr, "\ncommand failed: %v\n", err)
		os.Exit(1)
	}
	log.Info("command completed", "cmd", cmd)
}

type seedFile struct {
	Agencies []struct {
		Name           string   `yaml:"name"`
		WebsiteURL     string   `yaml:"website_url"`
		ApplicationURL string   `yaml:"application_url"`
		ModelingTypes  []string `yaml:"modeling_types"`
		Status         string   `yaml:"status"`
	} `yaml:"agencies"`
}

func runSeed(ctx context.Context, cfg *config.Config, st *store.Store) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	var file string
	fs.StringVar(&file, "file", "agencies.yaml", "Agency directory yaml file")
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}

	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	log := logging.New(cfg.Logging.Level).With("module", "seed")
	for _, a := range sf.Agencies {
		status := models.AgencyStatus(a.Status)
		if status == "" {
			status = models.AgencyActive
		}
		id, err := st.UpsertAgency(ctx, &models.AgencyTarget{
			Name:           a.Name,
			WebsiteURL:     a.WebsiteURL,
			ApplicationURL: a.ApplicationURL,
			ModelingTypes:  a.ModelingTypes,
			Status:         status,
		})
		if err != nil {
			log.Warn("seed failed for agency", "website", a.WebsiteURL, "err", err)
			continue
		}
		log.Info("agency seeded", "id", id, "website", a.WebsiteURL)
	}
	return nil
}

func runAgencies(ctx context.Context, st *store.Store) error {
	agencies, err := st.ListAgencies(ctx)
	if err != nil {
		return err
	}
	for _, a := range agencies {
		line := fmt.Sprintf("%d  %s  %s", a.ID, a.Name, a.WebsiteURL)
		if a.ApplicationURL != "" {
			line += "  -> " + a.ApplicationURL
		}
		fmt.Println(line)
	}
	return nil
}

func runResolve(ctx context.Context, cfg *config.Config, st *store.Store) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	var agencyID int64
	var rawURL string
	fs.Int64Var(&agencyID, "agency", 0, "Agency ID to resolve and cache")
	fs.StringVar(&rawURL, "url", "", "Ad hoc website URL to resolve (not cached)")
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}
	if agencyID == 0 && rawURL == "" {
		return fmt.Errorf("either --agency or --url is required")
	}

	log := logging.New(cfg.Logging.Level)
	website := rawURL
	if agencyID != 0 {
		a, err := st.GetAgency(ctx, agencyID)
		if err != nil {
			return err
		}
		website = a.WebsiteURL
	}

	br, err := browser.New(cfg)
	if err != nil {
		return err
	}
	defer br.Close()
	p, err := br.NewPage()
	if err != nil {
		return err
	}
	defer p.Close()

	res := newResolver(cfg, log)
	resolved := res.Resolve(ctx, p, website)
	fmt.Printf("%s -> %s\n", website, resolved)

	if agencyID != 0 && resolved != website {
		if err := st.SetApplicationURL(ctx, agencyID, resolved); err != nil {
			return err
		}
		log.Info("application url cached", "agency", agencyID, "url", resolved)
	}
	return nil
}

func runSubmit(ctx context.Context, cfg *config.Config, st *store.Store) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var userID, agencies, profilePath string
	fs.StringVar(&userID, "user", "", "User ID")
	fs.StringVar(&agencies, "agencies", "", "Comma-separated agency IDs")
	fs.StringVar(&profilePath, "profile", "profile.yaml", "Applicant profile yaml file")
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}
	if userID == "" || agencies == "" {
		return fmt.Errorf("--user and --agencies are required")
	}

	var agencyIDs []int64
	for _, s := range strings.Split(agencies, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("bad agency id %q: %w", s, err)
		}
		agencyIDs = append(agencyIDs, id)
	}

	b, err := os.ReadFile(profilePath)
	if err != nil {
		return err
	}
	var profile models.ApplicantProfile
	if err := yaml.Unmarshal(b, &profile); err != nil {
		return fmt.Errorf("parse %s: %w", profilePath, err)
	}
	if profile.Name == "" || profile.Email == "" {
		return fmt.Errorf("profile needs at least name and email")
	}

	log := logging.New(cfg.Logging.Level)
	drv := driver.New(cfg, newResolver(cfg, log))
	hook := notify.NewWebhook(cfg.Notify.WebhookURL, log)
	orch := orchestrator.New(st, drv, hook, cfg.Automation.MaxConcurrentJobs, log)

	res, err := orch.SubmitBatch(ctx, userID, agencyIDs, profile)
	if err != nil {
		return err
	}
	fmt.Printf("batch accepted: %d jobs, balance %d credits\n", len(res.JobIDs), res.NewBalance)

	// The engine itself is fire and forget; the CLI stays alive so the
	// attempts can finish before the process exits.
	orch.Wait()
	for _, id := range res.JobIDs {
		j, err := st.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("job %s: %s", j.ID, j.Status)
		if j.Status == models.JobSuccess {
			line += " " + j.ProofScreenshotURL
		} else if j.ErrorMessage != "" {
			line += " (" + j.ErrorMessage + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func runCredits(ctx context.Context, cfg *config.Config, st *store.Store) error {
	fs := flag.NewFlagSet("credits", flag.ContinueOnError)
	var userID string
	var add int
	fs.StringVar(&userID, "user", "", "User ID")
	fs.IntVar(&add, "add", 0, "Credits to deposit")
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	if add > 0 {
		if err := st.EnsureUser(ctx, userID); err != nil {
			return err
		}
		balance, err := st.AddCredits(ctx, userID, add, models.TxDeposit, "Manual deposit")
		if err != nil {
			return err
		}
		fmt.Printf("deposited %d credits, balance %d\n", add, balance)
		return nil
	}

	balance, err := st.Credits(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("balance: %d credits\n", balance)
	return nil
}

func runJobs(ctx context.Context, st *store.Store) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	var userID string
	fs.StringVar(&userID, "user", "", "User ID")
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	jobs, err := st.ListSubmissions(ctx, userID)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		fmt.Printf("%s  agency=%d  %s  %s%s\n", j.ID, j.AgencyID, j.Status, j.ProofScreenshotURL, j.ErrorMessage)
	}
	return nil
}

func newResolver(cfg *config.Config, log *logging.Logger) *resolver.Resolver {
	prober := resolver.NewProber(time.Duration(cfg.Resolver.ProbeTimeoutSec)*time.Second, cfg.Resolver.MinContentBytes, log)
	return resolver.New(prober, time.Duration(cfg.Automation.NavTimeoutSec)*time.Second, log)
}
