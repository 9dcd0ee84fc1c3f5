package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// tbs est le client en ligne de commande du serveur: chaque sous-commande
// appelle l'API v1 et affiche la réponse JSON.
func main() {
	baseURL := flag.String("server", envOr("TBS_SERVER_URL", "http://127.0.0.1:8080"), "URL du serveur (ex: http://127.0.0.1:8080)")
	timeout := flag.Duration("timeout", 30*time.Second, "Timeout HTTP")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}
	api := *baseURL + "/api/v1"

	switch args[0] {
	case "health":
		get(client, api+"/health")
	case "version":
		get(client, api+"/version")
	case "accounts":
		get(client, api+"/accounts")
	case "scan":
		scanCmd(client, api, args[1:])
	case "plan":
		planCmd(client, api, args[1:])
	case "run":
		runCmd(client, api, args[1:])
	case "batches":
		get(client, api+"/batches")
	case "batch":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: tbs batch <id>")
			os.Exit(2)
		}
		get(client, api+"/batches/"+args[1])
	case "cancel":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: tbs cancel <id>")
			os.Exit(2)
		}
		post(client, api+"/batches/"+args[1]+"/cancel", nil)
	case "schedules":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: tbs schedules <account>")
			os.Exit(2)
		}
		get(client, api+"/ledgers/"+args[1]+"/schedules")
	case "publishes":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: tbs publishes <account>")
			os.Exit(2)
		}
		get(client, api+"/ledgers/"+args[1]+"/publishes")
	default:
		fmt.Fprintln(os.Stderr, "Commande inconnue:", args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tbs [flags] <commande>

Commandes:
  health                  État du serveur
  version                 Version du serveur
  accounts                Comptes disposant de cookies
  scan -folder DIR        Inventaire des .mp4 d'un dossier
  plan ...                Prévisualisation des créneaux
  run ...                 Lancement d'un batch
  batches                 Liste des batchs
  batch <id>              Détail d'un batch
  cancel <id>             Annulation d'un batch
  schedules <account>     Ledger des plannings en attente
  publishes <account>     Ledger des publications confirmées`)
}

type ruleFlags struct {
	minOffset *int
	maxMonths *int
	step      *int
	interval  *int
	daily     *int
	randomize *bool
}

func bindRuleFlags(fs *flag.FlagSet) ruleFlags {
	return ruleFlags{
		minOffset: fs.Int("min-offset", 15, "Délai minimal avant le premier créneau (minutes)"),
		maxMonths: fs.Int("max-months", 1, "Horizon maximal (mois calendaires)"),
		step:      fs.Int("step", 5, "Pas de minute (diviseur de 60)"),
		interval:  fs.Int("interval", 60, "Espacement entre deux créneaux (minutes)"),
		daily:     fs.Int("daily-limit", 0, "Créneaux max par jour (0 = illimité)"),
		randomize: fs.Bool("randomize", false, "Jitter aléatoire à l'intérieur du pas"),
	}
}

func (rf ruleFlags) toMap() map[string]any {
	return map[string]any{
		"minOffsetMinutes":    *rf.minOffset,
		"maxOffsetMonths":     *rf.maxMonths,
		"minuteStep":          *rf.step,
		"intervalMinutes":     *rf.interval,
		"dailyLimit":          *rf.daily,
		"randomizeWithinStep": *rf.randomize,
	}
}

func windowMap(rangeStart, rangeEnd, dayStart, dayEnd string) (map[string]any, error) {
	start, err := time.Parse(time.RFC3339, rangeStart)
	if err != nil {
		return nil, fmt.Errorf("range-start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("range-end: %w", err)
	}
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(dayStart, "%d:%d", &sh, &sm); err != nil {
		return nil, fmt.Errorf("day-start: %w", err)
	}
	if _, err := fmt.Sscanf(dayEnd, "%d:%d", &eh, &em); err != nil {
		return nil, fmt.Errorf("day-end: %w", err)
	}
	return map[string]any{
		"rangeStart": start.Format(time.RFC3339),
		"rangeEnd":   end.Format(time.RFC3339),
		"dayStart":   map[string]int{"hour": sh, "minute": sm},
		"dayEnd":     map[string]int{"hour": eh, "minute": em},
	}, nil
}

func scanCmd(client *http.Client, api string, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	folder := fs.String("folder", "", "Dossier à inventorier")
	_ = fs.Parse(args)
	if *folder == "" {
		fmt.Fprintln(os.Stderr, "Usage: tbs scan -folder DIR")
		os.Exit(2)
	}
	post(client, api+"/scan", map[string]any{"folder": *folder})
}

func planCmd(client *http.Client, api string, args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	count := fs.Int("count", 0, "Nombre de créneaux voulus")
	rangeStart := fs.String("range-start", "", "Début de plage (RFC3339)")
	rangeEnd := fs.String("range-end", "", "Fin de plage (RFC3339)")
	dayStart := fs.String("day-start", "09:00", "Début de fenêtre quotidienne (HH:MM)")
	dayEnd := fs.String("day-end", "21:00", "Fin de fenêtre quotidienne (HH:MM)")
	rf := bindRuleFlags(fs)
	_ = fs.Parse(args)
	if *count <= 0 || *rangeStart == "" || *rangeEnd == "" {
		fmt.Fprintln(os.Stderr, "Usage: tbs plan -count N -range-start T -range-end T [options]")
		os.Exit(2)
	}

	window, err := windowMap(*rangeStart, *rangeEnd, *dayStart, *dayEnd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(2)
	}
	post(client, api+"/schedule/preview", map[string]any{
		"count":  *count,
		"rule":   rf.toMap(),
		"window": window,
	})
}

func runCmd(client *http.Client, api string, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	account := fs.String("account", "", "Handle du compte (sans @)")
	folder := fs.String("folder", "", "Dossier contenant les vidéos")
	limit := fs.Int("limit", 0, "Nombre max de vidéos (0 = toutes)")
	rangeStart := fs.String("range-start", "", "Début de plage (RFC3339)")
	rangeEnd := fs.String("range-end", "", "Fin de plage (RFC3339)")
	dayStart := fs.String("day-start", "09:00", "Début de fenêtre quotidienne (HH:MM)")
	dayEnd := fs.String("day-end", "21:00", "Fin de fenêtre quotidienne (HH:MM)")
	rf := bindRuleFlags(fs)
	_ = fs.Parse(args)
	if *account == "" || *folder == "" || *rangeStart == "" || *rangeEnd == "" {
		fmt.Fprintln(os.Stderr, "Usage: tbs run -account A -folder DIR -range-start T -range-end T [options]")
		os.Exit(2)
	}

	window, err := windowMap(*rangeStart, *rangeEnd, *dayStart, *dayEnd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(2)
	}
	post(client, api+"/batches", map[string]any{
		"account": *account,
		"folder":  *folder,
		"limit":   *limit,
		"rule":    rf.toMap(),
		"window":  window,
	})
}

func get(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
	show(resp)
}

func post(client *http.Client, url string, body any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fmt.Fprintln(os.Stderr, "Erreur:", err)
			os.Exit(1)
		}
	}
	resp, err := client.Post(url, "application/json", &buf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
	show(resp)
}

func show(resp *http.Response) {
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	var pretty any
	if err := json.Unmarshal(b, &pretty); err == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(pretty)
		if resp.StatusCode >= 400 {
			os.Exit(1)
		}
		return
	}

	os.Stdout.Write(b)
	os.Stdout.Write([]byte("\n"))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
