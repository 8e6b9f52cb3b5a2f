package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/nhle/mumail/internal/app"
	"github.com/nhle/mumail/internal/credential"
	"github.com/nhle/mumail/internal/debuglog"
	"github.com/nhle/mumail/internal/ipc"
	"github.com/nhle/mumail/internal/keys"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/store"
)

const sendTimeout = 5 * time.Second

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "mumail"
	cliApp.Usage = "A terminal mail client for mu"
	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the config file",
			EnvVars: []string{model.ConfigEnvVar},
		},
	}
	cliApp.Action = func(c *cli.Context) error {
		return runTUI(configPath(c), nil)
	}
	cliApp.Commands = []*cli.Command{
		{
			Name:      "open",
			Usage:     "Open a mumail:// URL in the running instance, or start one",
			ArgsUsage: "<url>",
			Action:    runOpen,
		},
		{
			Name:  "password",
			Usage: "Manage stored SMTP and IMAP passwords",
			Subcommands: []*cli.Command{
				{
					Name:      "set",
					Usage:     "Store a password in the OS keyring",
					ArgsUsage: "<account> smtp|imap",
					Action:    runPasswordSet,
				},
				{
					Name:      "delete",
					Usage:     "Remove a stored password",
					ArgsUsage: "<account> smtp|imap",
					Action:    runPasswordDelete,
				},
			},
		},
		{
			Name:  "config",
			Usage: "Manage the config file",
			Subcommands: []*cli.Command{
				{
					Name:   "init",
					Usage:  "Write a default config file",
					Action: runConfigInit,
				},
				{
					Name:   "path",
					Usage:  "Print the config file location",
					Action: func(c *cli.Context) error { fmt.Println(configPath(c)); return nil },
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return model.DefaultConfigPath()
}

func loadConfig(c *cli.Context) (*model.AppConfig, error) {
	return model.LoadConfig(configPath(c))
}

// runTUI starts the interactive client. initial, when set, is opened as
// soon as mu is up.
func runTUI(cfgPath string, initial *ipc.Link) error {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	k := keys.DefaultKeyMap()
	if err := k.Apply(cfg.Bindings); err != nil {
		return fmt.Errorf("applying bindings: %w", err)
	}

	log, err := debuglog.FromEnv()
	if err != nil {
		return err
	}
	defer log.Close()

	db, err := store.NewSQLiteStore(filepath.Join(model.ExpandHome(cfg.DataDir), "mumail.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	// A missing keyring only matters once a password is needed;
	// password_command and plain passwords still work.
	var ring credential.Getter
	if r, err := credential.Open(); err == nil {
		ring = r
	} else {
		log.Warnf("keyring unavailable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, err := ipc.Listen(ctx, ipc.SocketPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v; links will not reach this instance\n", yellow("warning:"), err)
		log.Warnf("ipc: %v", err)
	}

	m := app.New(app.Options{
		Config:  cfg,
		Account: cfg.DefaultAccount(),
		Keys:    k,
		Store:   db,
		Ring:    ring,
		Log:     log,
		IPC:     srv,
		Initial: initial,
	})
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	if fm, ok := final.(app.Model); ok {
		return fm.Err()
	}
	return nil
}

func runOpen(c *cli.Context) error {
	raw := c.Args().First()
	if raw == "" {
		return errors.New("usage: mumail open <url>")
	}
	link, err := ipc.ParseURL(raw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, sendTimeout)
	defer cancel()
	err = ipc.Send(ctx, ipc.SocketPath(), ipc.Command{Cmd: ipc.CmdOpen, URL: link.String()})
	switch {
	case err == nil:
		fmt.Printf("%s %s\n", green("opened"), link)
		return nil
	case errors.Is(err, ipc.ErrNotRunning):
		return runTUI(configPath(c), &link)
	default:
		return err
	}
}

// passwordKey maps "<account> smtp|imap" to a keyring entry.
func passwordKey(c *cli.Context) (string, error) {
	if c.NArg() != 2 {
		return "", fmt.Errorf("usage: mumail password %s <account> smtp|imap", c.Command.Name)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return "", err
	}
	account := c.Args().Get(0)
	found := false
	for _, a := range cfg.Accounts {
		if a.Name == account {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("no account named %q in %s", account, configPath(c))
	}

	switch strings.ToLower(c.Args().Get(1)) {
	case "smtp":
		return credential.SMTPKey(account), nil
	case "imap":
		return credential.IMAPKey(account), nil
	}
	return "", fmt.Errorf("unknown password kind %q, want smtp or imap", c.Args().Get(1))
}

func runPasswordSet(c *cli.Context) error {
	key, err := passwordKey(c)
	if err != nil {
		return err
	}
	var password string
	err = huh.NewInput().
		Title("Password for " + key).
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password, nothing stored")
	}

	ring, err := credential.Open()
	if err != nil {
		return err
	}
	if err := ring.Set(key, password); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", green("stored"), key)
	return nil
}

func runPasswordDelete(c *cli.Context) error {
	key, err := passwordKey(c)
	if err != nil {
		return err
	}
	ring, err := credential.Open()
	if err != nil {
		return err
	}
	if err := ring.Delete(key); err != nil {
		if credential.IsNotFound(err) {
			fmt.Printf("%s %s was not stored\n", yellow("skipped"), key)
			return nil
		}
		return err
	}
	fmt.Printf("%s %s\n", green("deleted"), key)
	return nil
}

func runConfigInit(c *cli.Context) error {
	path := configPath(c)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", green("wrote"), path)
	return nil
}
