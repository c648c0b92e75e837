package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

// rentnest-ops is the operator tool for the consistency auditor and the
// expiry sweeper. It talks to the running server's admin endpoints.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "consistency":
		handleConsistency(args)
	case "sweep":
		runSweep()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleConsistency(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: rentnest-ops consistency <diagnose|repair>")
		return
	}

	switch args[0] {
	case "diagnose":
		diagnose()
	case "repair":
		repair()
	default:
		fmt.Printf("unknown consistency command: %s\n", args[0])
	}
}

func diagnose() {
	var result struct {
		Consistent    bool `json:"consistent"`
		Discrepancies []struct {
			PropertyID      string   `json:"propertyId"`
			ApplicationID   string   `json:"applicationId"`
			Issues          []string `json:"issues"`
			PendingSiblings int      `json:"pendingSiblings"`
		} `json:"discrepancies"`
	}
	if !doAdmin("GET", "/admin/consistency", &result) {
		return
	}

	if result.Consistent {
		fmt.Println("✓ No discrepancies found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROPERTY\tAPPLICATION\tPENDING\tISSUES")
	for _, d := range result.Discrepancies {
		issues := ""
		for i, issue := range d.Issues {
			if i > 0 {
				issues += "; "
			}
			issues += issue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.PropertyID, d.ApplicationID, d.PendingSiblings, issues)
	}
	w.Flush()
	fmt.Printf("✗ %d inconsistent properties\n", len(result.Discrepancies))
}

func repair() {
	var result struct {
		Repaired int `json:"repaired"`
		Results  []struct {
			PropertyID       string `json:"propertyId"`
			PropertyFixed    bool   `json:"propertyFixed"`
			SiblingsRejected int64  `json:"siblingsRejected"`
			Error            string `json:"error,omitempty"`
		} `json:"results"`
	}
	if !doAdmin("POST", "/admin/consistency/repair", &result) {
		return
	}

	if result.Repaired == 0 {
		fmt.Println("✓ Nothing to repair")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROPERTY\tFIXED\tSIBLINGS REJECTED\tERROR")
	for _, r := range result.Results {
		fmt.Fprintf(w, "%s\t%t\t%d\t%s\n", r.PropertyID, r.PropertyFixed, r.SiblingsRejected, r.Error)
	}
	w.Flush()
}

func runSweep() {
	var result struct {
		Expired int64 `json:"expired"`
	}
	if !doAdmin("POST", "/admin/sweep", &result) {
		return
	}
	fmt.Printf("✓ Expired %d stale applications\n", result.Expired)
}

func doAdmin(method, path string, out any) bool {
	token := os.Getenv("RENTNEST_ADMIN_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: RENTNEST_ADMIN_TOKEN is not set")
		return false
	}

	req, err := http.NewRequest(method, getAPIURL()+path, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	req.Header.Set("X-Admin-Token", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		json.NewDecoder(resp.Body).Decode(&apiErr)
		fmt.Printf("✗ Request failed (%d): %v\n", resp.StatusCode, apiErr)
		return false
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	return true
}

func getAPIURL() string {
	if url := os.Getenv("RENTNEST_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func printUsage() {
	fmt.Print(`RentNest operations CLI

Usage:
  rentnest-ops <command> [options]

Commands:
  consistency  Consistency auditor (diagnose, repair)
  sweep        Expire stale pending applications now
  help         Show this help message

Environment Variables:
  RENTNEST_API          API endpoint (default: http://localhost:8080/api)
  RENTNEST_ADMIN_TOKEN  Shared admin token (required)

Examples:
  rentnest-ops consistency diagnose
  rentnest-ops consistency repair
  rentnest-ops sweep
`)
}
