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

// jobforgectl is a thin operator CLI against jobforged's REST API — it
// holds no engine state of its own, matching spec.md §4's "all engine
// state lives in the jobforged process" model.
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	rest := os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("addr", envOr("JOBFORGE_ADDR", "http://localhost:8080"), "jobforged base URL")
	token := fs.String("token", os.Getenv("JOBFORGE_TOKEN"), "bearer access token")

	var (
		id         = fs.String("id", "", "job/worker/schedule/alert id")
		jobType    = fs.String("type", "", "job type")
		priority   = fs.Int("priority", 0, "priority")
		paramsJSON = fs.String("params", "{}", "JSON params object")
		status     = fs.String("status", "", "status filter")
		limit      = fs.Int("limit", 50, "page size")
		cursor     = fs.String("cursor", "", "page cursor")
	)

	if err := fs.Parse(rest); err != nil {
		os.Exit(2)
	}

	c := &client{baseURL: *addr, token: *token, httpClient: &http.Client{Timeout: 10 * time.Second}}

	switch cmd {
	case "jobs:create":
		var params map[string]any
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			fatalf("invalid -params JSON: %v", err)
		}
		c.do(http.MethodPost, "/jobs", map[string]any{"type": *jobType, "priority": *priority, "params": params})

	case "jobs:get":
		c.do(http.MethodGet, "/jobs/"+*id, nil)
	case "jobs:cancel":
		c.do(http.MethodPost, "/jobs/"+*id+"/cancel", nil)
	case "jobs:retry":
		c.do(http.MethodPost, "/jobs/"+*id+"/retry", nil)

	case "admin:jobs":
		path := fmt.Sprintf("/admin/jobs?limit=%d", *limit)
		if *status != "" {
			path += "&status=" + *status
		}
		if *cursor != "" {
			path += "&cursor=" + *cursor
		}
		c.do(http.MethodGet, path, nil)

	case "admin:reprocess-dead":
		c.do(http.MethodPost, fmt.Sprintf("/admin/jobs/reprocess-dead?limit=%d", *limit), nil)

	case "admin:workers":
		c.do(http.MethodGet, "/admin/workers", nil)
	case "admin:alerts":
		c.do(http.MethodGet, "/admin/alerts", nil)
	case "admin:schedules":
		c.do(http.MethodGet, "/admin/schedules", nil)

	case "health":
		c.do(http.MethodGet, "/health", nil)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `jobforgectl <command> [flags]

commands:
  jobs:create -type T -priority N -params '{"k":"v"}'
  jobs:get -id ID
  jobs:cancel -id ID
  jobs:retry -id ID
  admin:jobs [-status S] [-limit N] [-cursor C]
  admin:reprocess-dead [-limit N]
  admin:workers
  admin:schedules
  admin:alerts
  health

flags:
  -addr   jobforged base URL (default $JOBFORGE_ADDR or http://localhost:8080)
  -token  bearer access token (default $JOBFORGE_TOKEN)`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func (c *client) do(method, path string, body any) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fatalf("read response: %v", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil && pretty.Len() > 0 {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(raw))
	}

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
