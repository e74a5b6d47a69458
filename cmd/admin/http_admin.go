package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	do(http.MethodGet, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/api/v1/status", "", "", "")
}

// turnCmd plays one sub-turn: turn [flags] cowboys|bullets.
func turnCmd(args []string) {
	fs := flag.NewFlagSet("turn", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	login := fs.String("login", "org", "organizer login")
	password := fs.String("password", os.Getenv("CA_ORG_PASSWORD"), "organizer password (or set CA_ORG_PASSWORD)")
	_ = fs.Parse(args)

	which := fs.Arg(0)
	if which != "cowboys" && which != "bullets" {
		fmt.Fprintln(os.Stderr, "usage: admin turn [flags] cowboys|bullets")
		os.Exit(2)
	}
	do(http.MethodPost, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/api/v1/org/turn/"+which, *login, *password, "")
}

// timerCmd starts or stops the server's turn timer.
func timerCmd(args []string) {
	fs := flag.NewFlagSet("timer", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	login := fs.String("login", "org", "organizer login")
	password := fs.String("password", os.Getenv("CA_ORG_PASSWORD"), "organizer password (or set CA_ORG_PASSWORD)")
	cowboyMs := fs.Int("cowboy_ms", 0, "cowboy turn period (start; 0 keeps the configured one)")
	bulletMs := fs.Int("bullet_ms", 0, "bullet turn period (start)")
	bulletTurns := fs.Int("bullet_turns", 0, "bullet sub-turns per turn (start)")
	_ = fs.Parse(args)

	which := fs.Arg(0)
	body := ""
	switch which {
	case "start":
		if *cowboyMs > 0 {
			body = fmt.Sprintf(`{"cowboy_turn_period_ms":%d,"bullet_turn_period_ms":%d,"bullet_turns":%d}`, *cowboyMs, *bulletMs, *bulletTurns)
		}
	case "stop":
	default:
		fmt.Fprintln(os.Stderr, "usage: admin timer [flags] start|stop")
		os.Exit(2)
	}
	do(http.MethodPost, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/api/v1/org/timer/"+which, *login, *password, body)
}

func do(method, url, login, password, body string) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if login != "" {
		req.SetBasicAuth(login, password)
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
