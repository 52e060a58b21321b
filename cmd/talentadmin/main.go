package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/app"
	"github.com/kailas-cloud/talentdex/internal/config"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
	logpkg "github.com/kailas-cloud/talentdex/internal/logger"
	"github.com/kailas-cloud/talentdex/internal/storage/sqlite"
	ledgeruc "github.com/kailas-cloud/talentdex/internal/usecase/ledger"
	"github.com/kailas-cloud/talentdex/internal/version"
)

const loggerKey = "logger"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "talentadmin",
		Usage:   "Operate a talentdex deployment",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		After: func(c *cli.Context) error {
			if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
				_ = l.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending SQLite migrations",
				Action: migrateCommand,
			},
			{
				Name:   "ensure-index",
				Usage:  "Create the card search index if it does not exist",
				Action: ensureIndexCommand,
			},
			{
				Name:   "credit",
				Usage:  "Add credits to a wallet",
				Action: creditCommand,
				Flags: []cli.Flag{
					personFlag(),
					&cli.Int64Flag{Name: "amount", Aliases: []string{"a"}, Usage: "Credits to add", Required: true},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Ledger reason (top_up, adjustment, refund)",
						Value: string(domledger.ReasonTopUp),
					},
					&cli.StringFlag{Name: "ref", Usage: "External reference id, e.g. a payment id"},
				},
			},
			{
				Name:   "balance",
				Usage:  "Print a wallet balance and its latest entries",
				Action: balanceCommand,
				Flags: []cli.Flag{
					personFlag(),
					&cli.IntFlag{Name: "limit", Usage: "Ledger entries to print", Value: 10},
				},
			},
			{
				Name:   "import",
				Usage:  "Import persons and experience cards from JSON files",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "persons", Usage: "JSON array of persons"},
					&cli.StringFlag{Name: "cards", Usage: "JSON array of cards"},
				},
			},
		},
	}
}

func personFlag() cli.Flag {
	return &cli.StringFlag{Name: "person", Aliases: []string{"p"}, Usage: "Person id", Required: true}
}

func setupLogger(c *cli.Context) error {
	logger, err := logpkg.NewLogger(c.String("env"), c.String("log-level"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[loggerKey] = logger
	return nil
}

func loggerOf(c *cli.Context) *zap.Logger {
	if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("env"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openRecords(ctx context.Context, cfg *config.Config) (*sqlite.Store, error) {
	return sqlite.Open(ctx, cfg.SQLite.Path, sqlite.Options{
		BusyTimeout:  time.Duration(cfg.SQLite.BusyTimeoutMs) * time.Millisecond,
		MaxOpenConns: cfg.SQLite.MaxOpenConns,
	})
}

func migrateCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	records, err := openRecords(c.Context, &cfg)
	if err != nil {
		return err
	}
	defer records.Close()

	applied, err := records.Migrate(c.Context)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(c.App.Writer, "schema is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Fprintln(c.App.Writer, "applied", name)
	}
	return nil
}

func ensureIndexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	index, records, err := app.OpenStores(c.Context, &cfg)
	if err != nil {
		return err
	}
	defer index.Close()
	defer records.Close()

	repo := app.CardRepo(&cfg, index)
	created, err := repo.EnsureIndex(c.Context)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	state := "exists"
	if created {
		state = "created"
	}
	fmt.Fprintf(c.App.Writer, "index %s %s\n", repo.Layout().IndexName(), state)
	return nil
}

func parseReason(s string) (domledger.Reason, error) {
	switch r := domledger.Reason(s); r {
	case domledger.ReasonTopUp, domledger.ReasonAdjustment, domledger.ReasonRefund:
		return r, nil
	default:
		return "", fmt.Errorf("unknown credit reason %q", s)
	}
}

func creditCommand(c *cli.Context) error {
	reason, err := parseReason(c.String("reason"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	records, err := openRecords(c.Context, &cfg)
	if err != nil {
		return err
	}
	defer records.Close()

	var ref domledger.Reference
	if id := c.String("ref"); id != "" {
		ref = domledger.Reference{Type: "admin", ID: id}
	}
	entry, err := ledgeruc.New(records).Credit(c.Context, c.String("person"), c.Int64("amount"), reason, ref)
	if err != nil {
		return err
	}
	loggerOf(c).Info("Credited wallet",
		zap.String("person_id", c.String("person")),
		zap.Int64("amount", entry.Amount),
		zap.Int64("balance", entry.BalanceAfter),
	)
	fmt.Fprintf(c.App.Writer, "balance %d\n", entry.BalanceAfter)
	return nil
}

func balanceCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	records, err := openRecords(c.Context, &cfg)
	if err != nil {
		return err
	}
	defer records.Close()

	svc := ledgeruc.New(records)
	personID := c.String("person")
	bal, err := svc.Balance(c.Context, personID)
	if err != nil {
		return err
	}
	entries, err := svc.Entries(c.Context, personID, c.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "balance %d\n", bal)
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "%s %+d %s %s -> %d\n",
			e.CreatedAt.UTC().Format(time.RFC3339), e.Amount, e.Reason, e.Reference.ID, e.BalanceAfter)
	}
	return nil
}

func importCommand(c *cli.Context) error {
	personsPath, cardsPath := c.String("persons"), c.String("cards")
	if personsPath == "" && cardsPath == "" {
		return fmt.Errorf("nothing to import: pass --persons and/or --cards")
	}

	var persons []person.Person
	if personsPath != "" {
		var err error
		if persons, err = readPersons(personsPath); err != nil {
			return err
		}
	}
	var drafts []domcard.Draft
	if cardsPath != "" {
		var err error
		if drafts, err = readCards(cardsPath); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := loggerOf(c)
	a, err := app.Build(c.Context, &cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	for i := range persons {
		if err := persons[i].Validate(); err != nil {
			return fmt.Errorf("person %q: %w", persons[i].ID, err)
		}
		if err := a.Records.PutPerson(c.Context, persons[i], now); err != nil {
			return err
		}
	}

	if len(drafts) > 0 {
		res, err := a.CardSvc.Import(c.Context, drafts)
		if err != nil {
			return err
		}
		for id, ferr := range res.Failed {
			logger.Warn("Card skipped", zap.String("card_id", id), zap.Error(ferr))
		}
		fmt.Fprintf(c.App.Writer, "imported %d cards, skipped %d\n", res.Imported, len(res.Failed))
	}

	// Cards already in the index pick up changed person attributes.
	for _, p := range persons {
		n, err := a.CardSvc.RefreshOwner(c.Context, p.ID)
		if err != nil {
			return fmt.Errorf("refresh %q: %w", p.ID, err)
		}
		logger.Debug("Refreshed owner", zap.String("person_id", p.ID), zap.Int("cards", n))
	}
	fmt.Fprintf(c.App.Writer, "imported %d persons\n", len(persons))
	return nil
}

// --- Import files ---

type contactJSON struct {
	Email        string `json:"email"`
	EmailVisible bool   `json:"email_visible"`
	Phone        string `json:"phone"`
	LinkedInURL  string `json:"linkedin_url"`
	Other        string `json:"other"`
}

type personJSON struct {
	ID            string      `json:"id"`
	DisplayName   string      `json:"display_name"`
	OpenToWork    bool        `json:"open_to_work"`
	OpenToContact bool        `json:"open_to_contact"`
	SalaryMin     *int64      `json:"salary_min"`
	SalaryMax     *int64      `json:"salary_max"`
	Visibility    string      `json:"visibility"`
	Contact       contactJSON `json:"contact"`
}

type cardJSON struct {
	ID        string `json:"id"`
	PersonID  string `json:"person_id"`
	ParentID  string `json:"parent_id"`
	Title     string `json:"title"`
	Context   string `json:"context"`
	Outcome   string `json:"outcome"`
	Company   string `json:"company"`
	Team      string `json:"team"`
	Domain    string `json:"domain"`
	SubDomain string `json:"sub_domain"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Remote    bool   `json:"remote"`
	Status    string `json:"status"`
	Hidden    bool   `json:"hidden"`
	SourceID  string `json:"source_id"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func readPersons(path string) ([]person.Person, error) {
	var raw []personJSON
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make([]person.Person, len(raw))
	for i, p := range raw {
		out[i] = person.Person{
			ID:            p.ID,
			DisplayName:   p.DisplayName,
			OpenToWork:    p.OpenToWork,
			OpenToContact: p.OpenToContact,
			SalaryMin:     p.SalaryMin,
			SalaryMax:     p.SalaryMax,
			Visibility:    person.Visibility(p.Visibility),
			Contact: person.Contact{
				Email:        p.Contact.Email,
				EmailVisible: p.Contact.EmailVisible,
				Phone:        p.Contact.Phone,
				LinkedInURL:  p.Contact.LinkedInURL,
				Other:        p.Contact.Other,
			},
		}
	}
	return out, nil
}

func readCards(path string) ([]domcard.Draft, error) {
	var raw []cardJSON
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make([]domcard.Draft, len(raw))
	for i, c := range raw {
		out[i] = domcard.Draft{
			ID:        c.ID,
			PersonID:  c.PersonID,
			ParentID:  c.ParentID,
			Title:     c.Title,
			Context:   c.Context,
			Outcome:   c.Outcome,
			Company:   c.Company,
			Team:      c.Team,
			Domain:    c.Domain,
			SubDomain: c.SubDomain,
			City:      c.City,
			Country:   c.Country,
			Remote:    c.Remote,
			Status:    domcard.Status(c.Status),
			Hidden:    c.Hidden,
			SourceID:  c.SourceID,
		}
	}
	return out, nil
}
