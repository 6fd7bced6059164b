// Command brunance-cli runs ledger maintenance tasks against the configured
// backend: backups, balance and debt reports, amount evaluation and a
// one-shot sync.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"brunance/internal/cli"
	"brunance/internal/core"
	"brunance/internal/services"
)

const usage = `usage: brunance-cli <command> [flags]

commands:
  export   [-o file]                          write a backup of the ledger
  import   -i file                            replace the ledger with a backup
  balances [-currency ARS]                    print account balances
  debt     [-year Y -month M] [-currency ARS] print who owes whom
  eval     <expression>                       evaluate an amount expression
  sync                                        reconcile once with the remote copy
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	// eval needs no backend.
	if cmd == "eval" {
		if err := runEval(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res := cli.InitBackend(ctx, logger, cfg)
	ledger := res.Ledger

	var err error
	switch cmd {
	case "export":
		err = runExport(ledger, args)
	case "import":
		err = runImport(ctx, ledger, args)
	case "balances":
		err = runBalances(ledger, args)
	case "debt":
		err = runDebt(ledger, args)
	case "sync":
		var report services.SyncReport
		if report, err = res.Sync.Sync(ctx); err == nil {
			err = printJSON(report)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		err = errors.New("unknown command")
	}

	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup failed", "error", cerr)
	}
	if err != nil {
		logger.Error("Command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func runEval(args []string) error {
	expr := strings.TrimSpace(strings.Join(args, " "))
	if expr == "" {
		return errors.New("eval: missing expression")
	}
	v, err := core.EvalAmount(expr)
	if err != nil {
		return err
	}
	fmt.Println(v.StringFixed(2))
	return nil
}

func runExport(l *services.LedgerService, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "", "output file (default: dated backup name)")
	_ = fs.Parse(args)

	name := *out
	if name == "" {
		name = services.BackupFileName(l.Now())
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	txs := l.Export()
	if err := services.WriteBackup(f, txs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported %d transactions to %s\n", len(txs), name)
	return nil
}

func runImport(ctx context.Context, l *services.LedgerService, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("i", "", "backup file to import")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.New("import: -i is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	txs, err := services.ReadBackup(f)
	if err != nil {
		return err
	}
	n, err := l.Import(ctx, txs)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d transactions (revision %d)\n", n, l.Revision())
	return nil
}

func currencyFlag(fs *flag.FlagSet) *string {
	return fs.String("currency", string(core.CurrencyARS), "currency to report")
}

func runBalances(l *services.LedgerService, args []string) error {
	fs := flag.NewFlagSet("balances", flag.ExitOnError)
	cur := currencyFlag(fs)
	_ = fs.Parse(args)

	currency, err := core.ParseCurrency(*cur)
	if err != nil {
		return err
	}
	for _, b := range l.Balances(currency) {
		fmt.Printf("%-28s %-6s %14s\n", b.Account.Name, b.Account.Owner, b.Balance.StringFixed(2))
	}
	return nil
}

func runDebt(l *services.LedgerService, args []string) error {
	fs := flag.NewFlagSet("debt", flag.ExitOnError)
	year := fs.Int("year", 0, "period year (default: current month)")
	month := fs.Int("month", 0, "period month")
	cur := currencyFlag(fs)
	_ = fs.Parse(args)

	currency, err := core.ParseCurrency(*cur)
	if err != nil {
		return err
	}
	p := l.CurrentPeriod()
	if *year != 0 || *month != 0 {
		if p, err = core.NewPeriod(*year, *month); err != nil {
			return err
		}
	}

	d := l.Debt(p, currency)
	fmt.Printf("%s %s: %s", p, currency, d.Summary())
	if !d.IsSettled() {
		fmt.Printf(" %s", d.Amount.StringFixed(2))
	}
	fmt.Println()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
