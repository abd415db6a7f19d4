package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"qsec/internal/client"
	"qsec/internal/config"
	"qsec/internal/models"
	"qsec/internal/redteam"
	"qsec/internal/version"
)

const usage = `Usage: qsec-agent [-config path] [-user name] <command> [flags]

Commands:
  watch      live dashboard with auto-remediation (press a to arm, q to quit)
  scan       TCP connect scan: -target host -ports 22,80,8000-8010
  simulate   trigger a simulated attack: -type sql_injection|ddos_simulation|brute_force
  remediate  request remediation directly: -type <attack type>
  grover     run the Grover search mock: -qubits n
  entropy    fetch an entropy score
  version    print version
`

func main() {
	configPath := flag.String("config", config.DefaultFile, "path to the configuration file")
	user := flag.String("user", "", "log in as this operator before issuing requests")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.APIURL, cfg.RequestTimeout())
	if err := authenticate(ctx, api, cfg, *user); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, api, args[0], args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func authenticate(ctx context.Context, api *client.Client, cfg *config.Config, user string) error {
	if user = strings.TrimSpace(user); user != "" {
		pwd, err := promptPassword(fmt.Sprintf("Password for %s: ", user))
		if err != nil {
			return err
		}
		_, err = api.Login(ctx, user, pwd)
		return err
	}
	if cfg.APIToken != "" {
		api.SetToken(cfg.APIToken)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, api *client.Client, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	switch cmd {
	case "watch":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return runWatch(ctx, cfg, api, out)

	case "scan":
		target := fs.String("target", "127.0.0.1", "host or IP to scan")
		ports := fs.String("ports", "21,22,80,443,3306,8080", "ports, e.g. 22,80,8000-8010")
		if err := fs.Parse(args); err != nil {
			return err
		}
		list, err := redteam.ParsePorts(*ports)
		if err != nil {
			return err
		}
		results, err := api.Scan(ctx, *target, list)
		if err != nil {
			return err
		}
		return writeScan(out, results)

	case "simulate", "remediate":
		attack := fs.String("type", string(models.AttackSQLInjection), "attack type")
		if err := fs.Parse(args); err != nil {
			return err
		}
		var (
			res any
			err error
		)
		if cmd == "simulate" {
			if !redteam.Known(models.AttackType(*attack)) {
				return fmt.Errorf("unknown attack type %q (want one of %v)", *attack, models.KnownAttackTypes())
			}
			res, err = api.Simulate(ctx, models.AttackType(*attack))
		} else {
			res, err = api.Remediate(ctx, models.AttackType(*attack))
		}
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "grover":
		qubits := fs.Int("qubits", 3, "register size")
		if err := fs.Parse(args); err != nil {
			return err
		}
		res, err := api.Grover(ctx, *qubits)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "entropy":
		if err := fs.Parse(args); err != nil {
			return err
		}
		score, err := api.Entropy(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "entropy_score: %.4f\n", score)
		return err
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func writeScan(w io.Writer, results []models.PortResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%-6d %-7s %s\n", r.Port, r.State, r.Service); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
