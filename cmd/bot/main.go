package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"cowboys.arena/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		apiURL   = flag.String("api", "http://localhost:8080", "api base url (program upload)")
		login    = flag.String("login", "", "team login")
		password = flag.String("password", os.Getenv("CA_TEAM_PASSWORD"), "team password (or set CA_TEAM_PASSWORD)")
		cowboy   = flag.String("cowboy", "", "cowboy program xml to upload and activate (optional)")
		bullet   = flag.String("bullet", "", "bullet program xml to upload and activate (optional)")
		history  = flag.Bool("history", true, "ask for the stored results after login")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *login == "" {
		logger.Fatalf("missing -login")
	}

	cl := &apiClient{base: strings.TrimRight(*apiURL, "/"), login: *login, password: *password, http: &http.Client{Timeout: 10 * time.Second}}
	for kind, path := range map[string]string{"cowboy": *cowboy, "bullet": *bullet} {
		if path == "" {
			continue
		}
		info, err := cl.upload(kind, path)
		if err != nil {
			logger.Fatalf("upload %s program: %v", kind, err)
		}
		if !info.Valid {
			logger.Fatalf("%s program %s is invalid: %s", kind, info.UUID, info.Error)
		}
		if err := cl.activate(kind, info.UUID); err != nil {
			logger.Fatalf("activate %s program: %v", kind, err)
		}
		logger.Printf("%s program %s (%s) active", kind, info.Name, info.UUID)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Login:           *login,
		Password:        *password,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case "":
			var e protocol.ErrorBody
			if json.Unmarshal(msg, &e) == nil && e.Error.Code != "" {
				logger.Fatalf("server error %s: %s", e.Error.Code, e.Error.Message)
			}

		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME team=%s index=%d", w.Team, w.TeamIndex)
			if *history {
				_ = conn.WriteJSON(protocol.BaseMessage{Type: protocol.TypeResults, ProtocolVersion: protocol.Version})
			}

		case protocol.TypeResults:
			var res protocol.ResultsMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			for _, r := range res.Cowboy {
				printRound(logger, "cowboy", r.Turn, r.Subturn, r.Lines)
			}
			for _, r := range res.Bullet {
				printRound(logger, "bullet", r.Turn, r.Subturn, r.Lines)
			}

		case protocol.TypeSubturn:
			var sub protocol.SubturnResultsMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			printRound(logger, sub.Kind, sub.Turn, sub.Subturn, sub.Lines)
		}
	}
}

func printRound(logger *log.Logger, kind string, turn, subturn int, lines []string) {
	logger.Printf("%s turn=%d subturn=%d", kind, turn, subturn)
	for _, l := range lines {
		logger.Printf("  %s", l)
	}
}

type apiClient struct {
	base            string
	login, password string
	http            *http.Client
}

func (c *apiClient) upload(kind, path string) (protocol.ProgramInfo, error) {
	var info protocol.ProgramInfo
	src, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	body, _ := json.Marshal(protocol.SaveProgramReq{Name: name, Description: "uploaded by bot", Program: string(src)})
	resp, err := c.do(http.MethodPost, "/api/v1/team/"+kind+"/programs", body)
	if err != nil {
		return info, err
	}
	return info, json.Unmarshal(resp, &info)
}

func (c *apiClient) activate(kind, id string) error {
	_, err := c.do(http.MethodPost, "/api/v1/team/"+kind+"/programs/"+id+"/activate", nil)
	return err
}

func (c *apiClient) do(method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.login, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}
