package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health asks the daemon for its component checks via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz", http.Header{"Accept": {"application/json"}})
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var resp struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		// Older daemons answer in plain text.
		resp.Healthy = status == http.StatusOK
	}

	if jsonOutput {
		return printJSON(map[string]any{"healthy": resp.Healthy, "url": baseURL, "checks": resp.Checks})
	}

	fmt.Fprintln(out)
	if resp.Healthy {
		fmt.Fprintf(out, "  %s  potholed is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Fprintf(out, "  %s  potholed returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(resp.Checks))
	for name := range resp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := resp.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := check["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
		}
		detail := ""
		if e, ok := check["error"].(string); ok {
			detail = e
		} else if p, ok := check["path"].(string); ok {
			detail = p
		} else if k, ok := check["kind"].(string); ok {
			detail = k
		}
		fmt.Fprintf(out, "    %s %s %s\n", mark, padRight(name, 12), colorize(dim, detail))
	}
	fmt.Fprintln(out)

	return nil
}
